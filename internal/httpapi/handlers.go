package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/auth"
	"outbound-dialer/internal/campaign"
	"outbound-dialer/internal/contacts"
	"outbound-dialer/internal/reporting"
	"outbound-dialer/internal/routing"
	"outbound-dialer/pkg/logger"

	"github.com/gin-gonic/gin"
)

// defaultMaxUploadBytes bounds a contact list upload unless
// Handlers.MaxUploadBytes overrides it.
const defaultMaxUploadBytes = 10 << 20

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Campaign  *campaign.Manager
	Reports   *reporting.Generator
	Audit     *audit.Service
	Overrides *routing.MemoryOverrideStore
	Router    *routing.Router

	MaxUploadBytes int64
	Now            func() time.Time
}

func (h Handlers) maxUpload() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// record writes a best-effort audit event for the calling operator.
func (h Handlers) record(c *gin.Context, typ audit.EventType, runID, message string) {
	if h.Audit == nil {
		return
	}
	id, _ := auth.IdentityFrom(c.Request.Context())
	if err := h.Audit.LogAction(c.Request.Context(), typ, id.UserID, id.Role, c.ClientIP(), runID, message); err != nil {
		logger.FromGin(c).Warn("audit append failed", "type", typ, "err", err)
	}
}

func campaignStatus(err error) int {
	switch {
	case errors.Is(err, campaign.ErrAlreadyRunning), errors.Is(err, campaign.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, campaign.ErrNoUpload),
		errors.Is(err, campaign.ErrNoContacts),
		errors.Is(err, contacts.ErrInvalidCSV):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortCampaign(c *gin.Context, err error) {
	status := campaignStatus(err)
	if status == http.StatusInternalServerError {
		logger.FromGin(c).Error("campaign request failed", "err", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// --- Auth ---

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new token pair.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	pair, err := h.Auth.Refresh(req.RefreshToken, h.now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h Handlers) Me(c *gin.Context) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "role": id.Role})
}

// --- Campaign ---

// UploadContacts accepts a CSV either as multipart field "file" or as the raw
// request body.
func (h Handlers) UploadContacts(c *gin.Context) {
	if h.Campaign == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign not configured"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload())

	var src io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			if uploadTooLarge(c, err) {
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" required"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "upload unreadable"})
			return
		}
		defer f.Close()
		src = f
	}

	rows, err := contacts.ReadCSV(src)
	if err != nil {
		if uploadTooLarge(c, err) {
			return
		}
		abortCampaign(c, err)
		return
	}
	res, err := h.Campaign.Upload(c.Request.Context(), rows)
	if err != nil {
		abortCampaign(c, err)
		return
	}
	h.record(c, audit.EventTypeContactsUploaded, "", strconv.Itoa(res.Accepted)+" contacts accepted")
	c.JSON(http.StatusOK, res)
}

func uploadTooLarge(c *gin.Context, err error) bool {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return false
	}
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
	return true
}

func (h Handlers) StartCampaign(c *gin.Context) {
	if h.Campaign == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign not configured"})
		return
	}
	state, run, err := h.Campaign.Start(c.Request.Context())
	if err != nil {
		abortCampaign(c, err)
		return
	}
	h.record(c, audit.EventTypeCampaignStarted, run.ID, "campaign started")
	c.JSON(http.StatusOK, gin.H{"status": "calling started", "run_id": run.ID, "state": state})
}

func (h Handlers) StopCampaign(c *gin.Context) {
	if h.Campaign == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign not configured"})
		return
	}
	state, err := h.Campaign.Stop(c.Request.Context())
	if err != nil {
		abortCampaign(c, err)
		return
	}
	runID := ""
	if run := h.Campaign.Current(); run != nil {
		runID = run.ID
	}
	h.record(c, audit.EventTypeCampaignStopped, runID, "campaign stop requested")
	c.JSON(http.StatusOK, state)
}

func (h Handlers) Progress(c *gin.Context) {
	if h.Campaign == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign not configured"})
		return
	}
	c.JSON(http.StatusOK, h.Campaign.Progress())
}

// --- Reports ---

func (h Handlers) ListReports(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reports not configured"})
		return
	}
	list, err := h.Reports.List(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("report listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": list})
}

// GenerateReport writes a snapshot of the current results on demand.
func (h Handlers) GenerateReport(c *gin.Context) {
	if h.Campaign == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign not configured"})
		return
	}
	rep, err := h.Campaign.GenerateReport(c.Request.Context())
	if err != nil {
		abortCampaign(c, err)
		return
	}
	h.record(c, audit.EventTypeReportGenerated, rep.Summary.RunID, rep.Name)
	c.JSON(http.StatusCreated, gin.H{"name": rep.Name, "created_at": rep.CreatedAt, "summary": rep.Summary})
}

func (h Handlers) DownloadReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reports not configured"})
		return
	}
	name := c.Param("name")
	path, err := h.Reports.Path(name)
	switch {
	case errors.Is(err, reporting.ErrInvalidName):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid report name"})
		return
	case errors.Is(err, reporting.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report lookup failed"})
		return
	}
	c.FileAttachment(path, name)
}

// --- Admin ---

type transferOverrideRequest struct {
	Phone      string `json:"phone"`
	ConnectTo  string `json:"connect_to"`
	TTLSeconds int    `json:"ttl_seconds"`
	Metadata   string `json:"metadata,omitempty"`
}

// CreateTransferOverride redirects transfers to a line for a bounded time.
// RBAC: admin.
func (h Handlers) CreateTransferOverride(c *gin.Context) {
	if h.Overrides == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "overrides not configured"})
		return
	}
	var req transferOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.TTLSeconds <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "ttl_seconds must be positive"})
		return
	}
	lines, err := routing.ParseAgentLines(req.ConnectTo)
	if err != nil || len(lines) != 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "connect_to must be one phone number or sip uri"})
		return
	}

	id, _ := auth.IdentityFrom(c.Request.Context())
	o, err := h.Overrides.Put(routing.Override{
		Phone:     req.Phone,
		ConnectTo: lines[0].TargetURI,
		ExpiresAt: h.now().Add(time.Duration(req.TTLSeconds) * time.Second),
		CreatedBy: id.UserID,
		Metadata:  req.Metadata,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.Audit != nil {
		_ = h.Audit.Append(c.Request.Context(), audit.Event{
			Type:        audit.EventTypeTransferOverride,
			ActorUserID: id.UserID,
			ActorRole:   id.Role,
			IPAddress:   c.ClientIP(),
			Phone:       o.Phone,
			OverrideID:  o.ID,
			Message:     "transfer override created",
			Metadata:    o.Metadata,
		})
	}
	c.JSON(http.StatusCreated, o)
}

func (h Handlers) ListTransferOverrides(c *gin.Context) {
	if h.Overrides == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "overrides not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"overrides": h.Overrides.Active(h.now())})
}

func (h Handlers) DeleteTransferOverride(c *gin.Context) {
	if h.Overrides == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "overrides not configured"})
		return
	}
	if !h.Overrides.Delete(c.Param("id")) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "override not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) AgentLines(c *gin.Context) {
	if h.Router == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "router not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": h.Router.Lines()})
}

func (h Handlers) AuditEvents(c *gin.Context) {
	if h.Audit == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit not configured"})
		return
	}
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	events, err := h.Audit.List(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
