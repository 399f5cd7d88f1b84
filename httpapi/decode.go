package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = &authcore.AuthError{Kind: authcore.KindValidation, Message: "Invalid request body"}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &authcore.AuthError{Kind: errInvalidBody.Kind, Message: errInvalidBody.Message, Err: err}
	}
	return nil
}

// queryReader collects query-string conversion failures as field errors.
type queryReader struct {
	values url.Values
	fields map[string]string
}

func newQueryReader(r *http.Request) *queryReader {
	return &queryReader{values: r.URL.Query(), fields: map[string]string{}}
}

func (q *queryReader) str(name string) string {
	return strings.TrimSpace(q.values.Get(name))
}

func (q *queryReader) intParam(name string) int {
	raw := q.str(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.fields[name] = "must be an integer"
		return 0
	}
	return n
}

func (q *queryReader) boolParam(name string) *bool {
	raw := q.str(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.fields[name] = "must be true or false"
		return nil
	}
	return &b
}

// timeParam accepts RFC 3339 timestamps or plain dates.
func (q *queryReader) timeParam(name string) *time.Time {
	raw := q.str(name)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	q.fields[name] = "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"
	return nil
}

func (q *queryReader) err() error {
	if len(q.fields) == 0 {
		return nil
	}
	return &authcore.AuthError{
		Kind:    authcore.KindValidation,
		Message: authcore.ErrValidation.Message,
		Fields:  q.fields,
		Err:     authcore.ErrValidation,
	}
}

func accountQuery(r *http.Request) (authcore.AccountQuery, error) {
	qr := newQueryReader(r)
	q := authcore.AccountQuery{
		Page:      qr.intParam("page"),
		Limit:     qr.intParam("limit"),
		Role:      authcore.Role(qr.str("role")),
		Active:    qr.boolParam("isActive"),
		Banned:    qr.boolParam("isBanned"),
		Search:    qr.str("search"),
		SortBy:    qr.str("sortBy"),
		SortOrder: qr.str("sortOrder"),
	}
	return q, qr.err()
}

func activityQuery(r *http.Request) (authcore.ActivityQuery, error) {
	qr := newQueryReader(r)
	q := authcore.ActivityQuery{
		AccountID: qr.str("userId"),
		Action:    authcore.ActivityAction(qr.str("action")),
		Start:     qr.timeParam("startDate"),
		End:       qr.timeParam("endDate"),
		Page:      qr.intParam("page"),
		Limit:     qr.intParam("limit"),
	}
	return q, qr.err()
}
