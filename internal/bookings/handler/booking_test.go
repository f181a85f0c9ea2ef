package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bikerent/internal/availability"
	"bikerent/internal/interval"
	apperrors "bikerent/pkg/errors"
	"bikerent/pkg/logger"
	"bikerent/pkg/middleware"
	"bikerent/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBookingService struct {
	bookFunc        func(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	searchFunc      func(ctx context.Context, w interval.Window) ([]availability.Result, error)
	getByIDFunc     func(ctx context.Context, id, userID string) (*model.Booking, error)
	listForUserFunc func(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
	cancelFunc      func(ctx context.Context, id, userID string) (*model.Booking, error)
}

func (m *mockBookingService) Book(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	return m.bookFunc(ctx, req)
}

func (m *mockBookingService) Search(ctx context.Context, w interval.Window) ([]availability.Result, error) {
	return m.searchFunc(ctx, w)
}

func (m *mockBookingService) GetByID(ctx context.Context, id, userID string) (*model.Booking, error) {
	return m.getByIDFunc(ctx, id, userID)
}

func (m *mockBookingService) ListForUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.listForUserFunc(ctx, userID, limit, offset)
}

func (m *mockBookingService) Cancel(ctx context.Context, id, userID string) (*model.Booking, error) {
	return m.cancelFunc(ctx, id, userID)
}

func serve(svc *mockBookingService, req *http.Request, userID string) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewBookingHandler(svc, logger.New(logger.Config{Output: io.Discard})).RegisterRoutes(router)

	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreate(t *testing.T) {
	var got *model.BookingRequest
	svc := &mockBookingService{
		bookFunc: func(_ context.Context, req *model.BookingRequest) (*model.Booking, error) {
			got = req
			return &model.Booking{ID: "b-1", UserID: req.UserID, Status: model.StatusConfirmed, TotalPrice: 150}, nil
		},
	}

	body := `{"vehicle_id":"v-1","location":"Downtown","start_time":"2025-03-03T09:00:00Z","end_time":"2025-03-04T21:00:00Z","total_price":150,"user_id":"spoofed"}`
	rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body)), "user-1")

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID, "identity comes from the token, not the body")
	assert.Equal(t, "v-1", got.VehicleID)
	require.NotNil(t, got.TotalPrice)
	assert.Equal(t, int64(150), *got.TotalPrice)

	var resp struct {
		Data model.Booking `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "b-1", resp.Data.ID)
}

func TestCreate_Errors(t *testing.T) {
	svc := &mockBookingService{
		bookFunc: func(context.Context, *model.BookingRequest) (*model.Booking, error) {
			return nil, apperrors.PriceMismatch(100, 150, 75)
		},
	}

	rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{`)), "user-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), apperrors.CodeBadRequest)

	rec = serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{}`)), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{}`)), "user-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperrors.CodePriceMismatch, resp.Code)
	assert.EqualValues(t, 150, resp.Details["calculated_price"])
}

func TestBookingGetByID(t *testing.T) {
	svc := &mockBookingService{
		getByIDFunc: func(_ context.Context, id, userID string) (*model.Booking, error) {
			if userID != "user-1" {
				return nil, apperrors.Forbidden("Booking belongs to another user")
			}
			return &model.Booking{ID: id, UserID: userID}, nil
		},
	}

	rec := serve(svc, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/id/b-1", nil), "user-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"b-1"`)

	rec = serve(svc, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/id/b-1", nil), "user-2")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListForUser(t *testing.T) {
	var gotLimit int
	var gotOffset int64
	svc := &mockBookingService{
		listForUserFunc: func(_ context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
			gotLimit, gotOffset = limit, offset
			return []*model.Booking{{ID: "b-1", UserID: userID}}, 7, nil
		},
	}

	rec := serve(svc, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/user?limit=5&offset=2", nil), "user-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)
	assert.Equal(t, int64(2), gotOffset)

	var resp struct {
		Data       []model.Booking `json:"data"`
		TotalCount int64           `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.TotalCount)
	assert.Len(t, resp.Data, 1)

	rec = serve(svc, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/user?limit=abc", nil), "user-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancel(t *testing.T) {
	svc := &mockBookingService{
		cancelFunc: func(_ context.Context, id, userID string) (*model.Booking, error) {
			if id == "done" {
				return nil, apperrors.Conflict("Booking is cancelled and cannot be cancelled")
			}
			return &model.Booking{ID: id, UserID: userID, Status: model.StatusCancelled}, nil
		},
	}

	rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/bookings/id/b-1/cancel", nil), "user-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)

	rec = serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/bookings/id/done/cancel", nil), "user-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSearch(t *testing.T) {
	var got interval.Window
	svc := &mockBookingService{
		searchFunc: func(_ context.Context, w interval.Window) ([]availability.Result, error) {
			got = w
			return []availability.Result{{
				Vehicle:      &model.Vehicle{ID: "v-1"},
				Availability: map[string]bool{"Downtown": true},
				Price:        150,
			}}, nil
		},
	}

	rec := serve(svc, httptest.NewRequest(http.MethodGet,
		"/api/v1/vehicles/search?start_time=2025-03-03T14:30:00%2B05:30&end_time=2025-03-05T00:00:00Z", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), got.Start)
	assert.Contains(t, rec.Body.String(), `"calculated_price":150`)
	assert.Contains(t, rec.Body.String(), `"Downtown":true`)
}

func TestSearch_BadParams(t *testing.T) {
	svc := &mockBookingService{}
	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"missing start", "end_time=2025-03-05T00:00:00Z", apperrors.CodeInvalidInput},
		{"malformed end", "start_time=2025-03-03T00:00:00Z&end_time=tomorrow", apperrors.CodeInvalidInput},
		{"inverted window", "start_time=2025-03-05T00:00:00Z&end_time=2025-03-03T00:00:00Z", apperrors.CodeInvalidWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(svc, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/search?"+tt.query, nil), "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}
}
