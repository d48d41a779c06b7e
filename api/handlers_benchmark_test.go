package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
)

func BenchmarkCreateTask(b *testing.B) {
	payloads := []struct {
		name string
		body []byte
	}{
		{name: "Plain", body: []byte(`{"title":"benchmark"}`)},
		{name: "CustomField", body: []byte(`{"title":"benchmark","custom_field":{"field_name":"points","field_type":"number","field_value":5}}`)},
	}

	for _, payload := range payloads {
		b.Run(payload.name, func(b *testing.B) {
			logger, _ := test.NewNullLogger()
			store := newMockStore()
			events := NewEventDispatcher(&recordingPublisher{}, logger, DispatcherConfig{Workers: 4, Buffer: 1024}, 1)
			defer events.Close()

			e := echo.New()
			Register(e, store, mockAuth{}, nil, events, logger)
			runCreateTaskBenchmark(b, e, payload.body)
		})
	}
}

func runCreateTaskBenchmark(b *testing.B, e *echo.Echo, payload []byte) {
	b.Helper()
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(payload))
			req.Header.Set(echo.HeaderAuthorization, "Bearer bench")
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != http.StatusCreated {
				b.Fatalf("unexpected status: %d", rec.Code)
			}
		}
	})
}
