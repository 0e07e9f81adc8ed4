package mediator

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkarlsen/met-collection-proxy/internal/testutil"
	"github.com/mkarlsen/met-collection-proxy/pkg/cache"
	"github.com/mkarlsen/met-collection-proxy/pkg/client"
	"github.com/mkarlsen/met-collection-proxy/pkg/scheduler"
)

func newTestMediator(t *testing.T, mock *testutil.MockMET) *Mediator {
	t.Helper()

	upstream, err := client.New(client.Config{
		BaseURL:   mock.URL(),
		UserAgent: "met-collection-proxy-test/1.0",
		Timeout:   2 * time.Second,
	}, client.RetryConfig{
		Max403:        2,
		MaxNetwork:    1,
		BackoffBase:   10 * time.Millisecond,
		BackoffJitter: 5 * time.Millisecond,
		NetworkDelay:  10 * time.Millisecond,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	sched, err := scheduler.New(scheduler.Config{
		Concurrency: 3,
		IntervalCap: 100,
		Interval:    100 * time.Millisecond,
		Timeout:     5 * time.Second,
		QueueSize:   64,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("scheduler.New() error = %v", err)
	}
	t.Cleanup(sched.Close)

	return New(cache.New(time.Hour), sched, upstream, zerolog.Nop())
}

func TestMediator_FetchCachesResult(t *testing.T) {
	mock := testutil.NewMockMET()
	defer mock.Close()

	path := "/public/collection/v1/objects/1"
	body := testutil.ObjectBody(1, "X")
	mock.SetResponse(path, testutil.MockResponse{StatusCode: http.StatusOK, Body: body})

	m := newTestMediator(t, mock)

	first, err := m.Fetch(context.Background(), path, "object-detail-1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(first) != body {
		t.Errorf("Fetch() = %s, want %s", first, body)
	}

	second, err := m.Fetch(context.Background(), path, "object-detail-1")
	if err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if string(second) != string(first) {
		t.Errorf("cached payload differs: %s vs %s", second, first)
	}
	if got := mock.PathCount(path); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (second call served from cache)", got)
	}
}

func TestMediator_FailuresAreNotCached(t *testing.T) {
	mock := testutil.NewMockMET()
	defer mock.Close()

	path := "/public/collection/v1/objects/2"
	mock.SetResponse(path, testutil.MockResponse{StatusCode: http.StatusNotFound})

	m := newTestMediator(t, mock)

	_, err := m.Fetch(context.Background(), path, "object-detail-2")
	var httpErr *client.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("Fetch() error = %v, want 404 *HTTPError", err)
	}

	// The upstream recovers; the earlier failure must not be served.
	body := testutil.ObjectBody(2, "Y")
	mock.SetResponse(path, testutil.MockResponse{StatusCode: http.StatusOK, Body: body})

	payload, err := m.Fetch(context.Background(), path, "object-detail-2")
	if err != nil {
		t.Fatalf("Fetch() after recovery error = %v", err)
	}
	if string(payload) != body {
		t.Errorf("Fetch() = %s, want %s", payload, body)
	}
	if got := mock.PathCount(path); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
}

func TestMediator_403RetriedThenSucceeds(t *testing.T) {
	mock := testutil.NewMockMET()
	defer mock.Close()

	path := "/public/collection/v1/objects/3"
	body := testutil.ObjectBody(3, "Z")
	mock.SetSequence(path,
		testutil.MockResponse{StatusCode: http.StatusForbidden},
		testutil.MockResponse{StatusCode: http.StatusForbidden},
		testutil.MockResponse{StatusCode: http.StatusOK, Body: body},
	)

	m := newTestMediator(t, mock)

	payload, err := m.Fetch(context.Background(), path, "object-detail-3")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(payload) != body {
		t.Errorf("Fetch() = %s, want %s", payload, body)
	}
}

func TestMediator_ForbiddenSurfacesTyped(t *testing.T) {
	mock := testutil.NewMockMET()
	defer mock.Close()

	path := "/public/collection/v1/search"
	mock.SetResponse(path, testutil.MockResponse{StatusCode: http.StatusForbidden})

	m := newTestMediator(t, mock)

	_, err := m.Fetch(context.Background(), path, "search-images-cat")
	if !errors.Is(err, client.ErrForbidden) {
		t.Errorf("Fetch() error = %v, want ErrForbidden", err)
	}
}

func TestMediator_CacheHitBypassesScheduler(t *testing.T) {
	mock := testutil.NewMockMET()
	defer mock.Close()

	m := newTestMediator(t, mock)
	// Close the scheduler: only a cache hit can succeed now.
	m.sched.Close()

	m.cache.Set("departments", []byte(`{"departments":[]}`))

	payload, err := m.Fetch(context.Background(), "/public/collection/v1/departments", "departments")
	if err != nil {
		t.Fatalf("Fetch() error = %v, cache hit should bypass the scheduler", err)
	}
	if string(payload) != `{"departments":[]}` {
		t.Errorf("Fetch() = %s", payload)
	}
}
