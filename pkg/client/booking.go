package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"bikerent/internal/availability"
	"bikerent/pkg/model"
)

// RentalsClient talks to the rentals HTTP API. Responses are decoded into
// the service's own model types; non-2xx replies come back as *APIError.
type RentalsClient struct {
	httpClient *HttpClient
}

func NewRentalsClient(baseURL, token string) *RentalsClient {
	hc := NewHttpClient(baseURL)
	hc.Token = token
	return &RentalsClient{httpClient: hc}
}

func (c *RentalsClient) Vehicles(ctx context.Context) ([]*model.Vehicle, error) {
	var vehicles []*model.Vehicle
	return vehicles, c.get(ctx, "/api/v1/vehicles", &vehicles)
}

func (c *RentalsClient) Search(ctx context.Context, start, end time.Time) ([]availability.Result, error) {
	q := url.Values{}
	q.Set("start_time", start.Format(time.RFC3339))
	q.Set("end_time", end.Format(time.RFC3339))

	var results []availability.Result
	return results, c.get(ctx, "/api/v1/vehicles/search?"+q.Encode(), &results)
}

// Book submits an admission request. A non-empty idempotencyKey makes a
// retried call replay the first successful response.
func (c *RentalsClient) Book(ctx context.Context, req *model.BookingRequest, idempotencyKey string) (*model.Booking, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}

	resp, err := c.httpClient.POSTWithHeaders(ctx, "/api/v1/bookings", req, headers)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var booking model.Booking
	if err := resp.DecodeData(&booking); err != nil {
		return nil, fmt.Errorf("failed to decode booking: %w", err)
	}
	return &booking, nil
}

func (c *RentalsClient) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	var booking model.Booking
	if err := c.get(ctx, "/api/v1/bookings/id/"+url.PathEscape(id), &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *RentalsClient) MyBookings(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	path := fmt.Sprintf("/api/v1/bookings/user?limit=%d&offset=%d", limit, offset)
	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, 0, err
	}

	var page struct {
		Data       []*model.Booking `json:"data"`
		TotalCount int64            `json:"total_count"`
	}
	if err := resp.DecodeJSON(&page); err != nil {
		return nil, 0, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return page.Data, page.TotalCount, nil
}

func (c *RentalsClient) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/bookings/id/"+url.PathEscape(id)+"/cancel", nil)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var booking model.Booking
	if err := resp.DecodeData(&booking); err != nil {
		return nil, fmt.Errorf("failed to decode booking: %w", err)
	}
	return &booking, nil
}

func (c *RentalsClient) get(ctx context.Context, path string, target any) error {
	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return err
	}
	if err := checkResponse(resp); err != nil {
		return err
	}
	if err := resp.DecodeData(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
