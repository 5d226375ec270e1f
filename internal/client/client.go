// Package client is a thin HTTP client for the bedplanner API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bedplanner/internal/beds"
	"bedplanner/internal/patients"
	"bedplanner/internal/stays"

	"github.com/go-resty/resty/v2"
	"github.com/golang-sql/civil"
	"github.com/sony/gobreaker"
)

// StatusError is returned for any unexpected response code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

// Client talks to one API instance. Server errors and transport failures
// count against a circuit breaker; once it opens, calls fail fast with
// gobreaker.ErrOpenState until the cool-down elapses.
type Client struct {
	rest    *resty.Client
	breaker *gobreaker.CircuitBreaker
}

// Option tunes a Client.
type Option func(*gobreaker.Settings)

// WithBreaker overrides the failure threshold and the open-state cool-down.
func WithBreaker(consecutiveFailures uint32, coolDown time.Duration) Option {
	return func(s *gobreaker.Settings) {
		s.Timeout = coolDown
		s.ReadyToTrip = func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= consecutiveFailures
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	settings := gobreaker.Settings{Name: "bedplanner-api"}
	WithBreaker(5, 10*time.Second)(&settings)
	for _, opt := range opts {
		opt(&settings)
	}
	return &Client{
		rest: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// PlacementRequest is the body of POST /placements.
type PlacementRequest struct {
	StayID               string      `json:"stay_id,omitempty"`
	PatientID            string      `json:"patient_id"`
	StayType             string      `json:"stay_type"`
	AdmissionDate        civil.Date  `json:"admission_date"`
	DischargeDatePlanned *civil.Date `json:"discharge_date_planned,omitempty"`
}

func (c *Client) CreatePatient(ctx context.Context, p patients.Patient) (patients.Patient, error) {
	var out patients.Patient
	_, err := c.do(ctx, http.MethodPost, "/patients", nil, p, &out, http.StatusCreated)
	return out, err
}

func (c *Client) CreateBed(ctx context.Context, b beds.Bed) (beds.Bed, error) {
	var out beds.Bed
	_, err := c.do(ctx, http.MethodPost, "/beds", nil, b, &out, http.StatusCreated)
	return out, err
}

func (c *Client) UpdateBedStatus(ctx context.Context, id string, status beds.Status) (beds.Bed, error) {
	var out beds.Bed
	body := map[string]beds.Status{"status": status}
	_, err := c.do(ctx, http.MethodPatch, "/beds/"+url.PathEscape(id)+"/status", nil, body, &out, http.StatusOK)
	return out, err
}

// SuggestBed returns ok == false when the server has no bed to offer.
func (c *Client) SuggestBed(ctx context.Context, patientID string, date civil.Date) (beds.Bed, bool, error) {
	q := map[string]string{"patient_id": patientID, "date": date.String()}
	var out beds.Bed
	code, err := c.do(ctx, http.MethodGet, "/placements/suggestion", q, nil, &out, http.StatusOK, http.StatusNoContent)
	return out, code == http.StatusOK, err
}

// Place returns ok == false when no bed was free.
func (c *Client) Place(ctx context.Context, req PlacementRequest) (stays.HospitalStay, bool, error) {
	var out stays.HospitalStay
	code, err := c.do(ctx, http.MethodPost, "/placements", nil, req, &out, http.StatusCreated, http.StatusNoContent)
	return out, code == http.StatusCreated, err
}

func (c *Client) Discharge(ctx context.Context, stayID string, date civil.Date) (stays.HospitalStay, error) {
	var out stays.HospitalStay
	body := map[string]civil.Date{"date": date}
	_, err := c.do(ctx, http.MethodPost, "/stays/"+url.PathEscape(stayID)+"/discharge", nil, body, &out, http.StatusOK)
	return out, err
}

func (c *Client) ActiveStays(ctx context.Context, date civil.Date) ([]stays.HospitalStay, error) {
	var out []stays.HospitalStay
	q := map[string]string{"active_on": date.String()}
	_, err := c.do(ctx, http.MethodGet, "/stays", q, nil, &out, http.StatusOK)
	return out, err
}

func (c *Client) Census(ctx context.Context, date civil.Date) (stays.Census, error) {
	var out stays.Census
	q := map[string]string{"date": date.String()}
	_, err := c.do(ctx, http.MethodGet, "/census", q, nil, &out, http.StatusOK)
	return out, err
}

// do runs one exchange through the breaker. A JSON body is decoded into out
// on 2xx responses that carry one. Codes outside expected yield a
// *StatusError; only 5xx codes count as breaker failures.
func (c *Client) do(ctx context.Context, method, path string, query map[string]string, in, out any, expected ...int) (int, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		req := c.rest.R().SetContext(ctx).SetQueryParams(query)
		if in != nil {
			req.SetBody(in)
		}
		if out != nil {
			req.SetResult(out)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, &StatusError{Code: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
		}
		return resp, nil
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return se.Code, err
		}
		return 0, err
	}

	resp := res.(*resty.Response)
	for _, code := range expected {
		if resp.StatusCode() == code {
			return code, nil
		}
	}
	return resp.StatusCode(), &StatusError{Code: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
}
