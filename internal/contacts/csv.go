package contacts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrInvalidCSV = errors.New("contacts: invalid csv")

// Required upload headers. Extra columns are ignored.
const (
	HeaderClient = "Client"
	HeaderName   = "Name"
	HeaderPhone  = "Phone"
)

// ReadCSV parses an uploaded contact list. Cells are trimmed; rows with every
// cell empty are skipped.
func ReadCSV(r io.Reader) ([]Contact, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrInvalidCSV)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
	}

	idx := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	for _, h := range []string{HeaderClient, HeaderName, HeaderPhone} {
		if _, ok := idx[h]; !ok {
			return nil, fmt.Errorf("%w: csv must contain headers %s, %s, %s", ErrInvalidCSV, HeaderClient, HeaderName, HeaderPhone)
		}
	}

	var out []Contact
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
		}
		c := Contact{
			ClientID: cell(rec, idx[HeaderClient]),
			Name:     cell(rec, idx[HeaderName]),
			PhoneRaw: cell(rec, idx[HeaderPhone]),
		}
		if c == (Contact{}) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func cell(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
