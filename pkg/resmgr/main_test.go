package resmgr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stefanprodan/kubebroker/pkg/manifest"
	"github.com/stefanprodan/kubebroker/pkg/params"
)

var ctx = context.Background()

// apiServer emulates the Kubernetes API endpoints used by the ResourceManager.
type apiServer struct {
	*httptest.Server

	mu     sync.Mutex
	calls  []string
	times  []time.Time
	bodies map[string]string

	// respond returns the status code for a request, zero means 200 for
	// GET and DELETE and 201 for POST.
	respond func(method, path, body string) int
	// phases are returned in sequence by the pod status endpoint,
	// an empty phase returns 404.
	phases []string
}

func newAPIServer(t *testing.T) *apiServer {
	s := &apiServer{bodies: map[string]string{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *apiServer) handle(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	body := string(data)

	s.mu.Lock()
	call := r.Method + " " + r.URL.Path
	s.calls = append(s.calls, call)
	s.times = append(s.times, time.Now())
	if r.Method == http.MethodPost {
		s.bodies[call+"#"+fmt.Sprint(len(s.calls))] = body
		if ct := r.Header.Get("Content-Type"); ct != "application/yaml" {
			s.mu.Unlock()
			http.Error(w, "unsupported content type "+ct, http.StatusUnsupportedMediaType)
			return
		}
	}
	if r.Header.Get("Authorization") != "Bearer test-token" {
		s.mu.Unlock()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if strings.HasSuffix(r.URL.Path, "/status") {
		phase := ""
		if len(s.phases) > 0 {
			phase = s.phases[0]
			s.phases = s.phases[1:]
		}
		s.mu.Unlock()
		if phase == "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"apiVersion":"v1","kind":"Pod","metadata":{"name":"mongo-0"},"status":{"phase":%q}}`, phase)
		return
	}

	code := 0
	if s.respond != nil {
		code = s.respond(r.Method, r.URL.Path, body)
	}
	s.mu.Unlock()

	if code == 0 {
		code = http.StatusOK
		if r.Method == http.MethodPost {
			code = http.StatusCreated
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprint(w, "{}")
}

func (s *apiServer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.calls...)
}

// Intervals returns the time elapsed between consecutive requests.
func (s *apiServer) Intervals() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var intervals []time.Duration
	for i := 1; i < len(s.times); i++ {
		intervals = append(intervals, s.times[i].Sub(s.times[i-1]))
	}
	return intervals
}

func (s *apiServer) Bodies() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	bodies := make(map[string]string, len(s.bodies))
	for k, v := range s.bodies {
		bodies[k] = v
	}
	return bodies
}

func newTestManager(t *testing.T) *ResourceManager {
	t.Helper()
	renderer, err := manifest.NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	return NewResourceManager(renderer, NewClientFactory(false), zap.NewNop().Sugar())
}

func testParameters(url string) *params.InstanceParameters {
	return &params.InstanceParameters{
		Namespace:          "tenant",
		Name:               "mongo",
		AccessToken:        "test-token",
		URL:                url,
		ExposePort:         31000,
		Storage:            "128Mi",
		Replicas:           1,
		ServiceTimeout:     metav1.Duration{Duration: 10 * time.Millisecond},
		Image:              "mongo:4.4.6",
		StorageProvisioner: "kubernetes.io/gce-pd",
	}
}
