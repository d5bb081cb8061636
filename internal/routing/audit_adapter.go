package routing

import (
	"context"

	"outbound-dialer/internal/audit"
)

// AuditAdapter records applied overrides in the shared audit trail.
type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) LogOverrideApplied(ctx context.Context, e OverrideAuditEvent) error {
	if a.Audit == nil {
		return nil
	}
	return a.Audit.LogOverride(ctx, audit.OverrideApplied{
		OverrideID: e.OverrideID,
		Phone:      e.Phone,
		ConnectTo:  e.ConnectTo,
		CallSid:    e.CallSid,
		SourceIP:   e.SourceIP,
		Metadata:   e.Metadata,
	})
}
