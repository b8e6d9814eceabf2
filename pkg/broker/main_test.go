package broker

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

	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/stefanprodan/kubebroker/pkg/catalog"
	"github.com/stefanprodan/kubebroker/pkg/credstore"
	"github.com/stefanprodan/kubebroker/pkg/inventory"
	"github.com/stefanprodan/kubebroker/pkg/manifest"
	"github.com/stefanprodan/kubebroker/pkg/mongo"
	"github.com/stefanprodan/kubebroker/pkg/operation"
	"github.com/stefanprodan/kubebroker/pkg/params"
	"github.com/stefanprodan/kubebroker/pkg/registry"
	"github.com/stefanprodan/kubebroker/pkg/resmgr"
	"github.com/stefanprodan/kubebroker/pkg/worker"
)

var ctx = context.Background()

const (
	brokerNamespace = "kubebroker-system"
	defaultPlanID   = catalog.DefaultServiceID + catalog.DefaultPlan
)

// clusterServer emulates the Kubernetes API of the target cluster and the
// instance registry issuing credentials for it.
type clusterServer struct {
	*httptest.Server

	mu    sync.Mutex
	calls []string

	// clusters is the number of registry entries matching the cluster name.
	clusters int
	// respond returns the status code of a Kubernetes API request, zero
	// means 200 for GET and DELETE and 201 for POST.
	respond func(method, path, body string) int
	// phases are returned in sequence by the pod status endpoint.
	phases []string
}

func newClusterServer(t *testing.T) *clusterServer {
	s := &clusterServer{clusters: 1}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *clusterServer) handle(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.calls = append(s.calls, r.Method+" "+r.URL.Path)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if strings.HasPrefix(r.URL.Path, "/v2/") {
		s.handleRegistry(w, r)
		return
	}

	if r.Header.Get("Authorization") != "Bearer test-token" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if strings.HasSuffix(r.URL.Path, "/status") {
		s.mu.Lock()
		phase := "Pending"
		if len(s.phases) > 0 {
			phase = s.phases[0]
			s.phases = s.phases[1:]
		}
		s.mu.Unlock()
		fmt.Fprintf(w, `{"apiVersion":"v1","kind":"Pod","metadata":{"name":"mongo-0"},"status":{"phase":%q}}`, phase)
		return
	}

	code := 0
	s.mu.Lock()
	if s.respond != nil {
		code = s.respond(r.Method, r.URL.Path, string(data))
	}
	s.mu.Unlock()
	if code == 0 {
		code = http.StatusOK
		if r.Method == http.MethodPost {
			code = http.StatusCreated
		}
	}
	w.WriteHeader(code)
	fmt.Fprint(w, "{}")
}

func (s *clusterServer) handleRegistry(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer user-identity" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v2/service_instances":
		s.mu.Lock()
		clusters := s.clusters
		s.mu.Unlock()
		if clusters == 0 {
			fmt.Fprint(w, `{"total_results":0,"resources":[]}`)
			return
		}
		fmt.Fprint(w, `{"total_results":1,"resources":[{"metadata":{"guid":"cluster-guid"}}]}`)
	case r.Method == http.MethodPost && r.URL.Path == "/v2/service_keys":
		kubeconfig := fmt.Sprintf(`{"apiVersion":"v1","kind":"Config",`+
			`"clusters":[{"name":"dev","cluster":{"server":%q}}],`+
			`"users":[{"name":"admin","user":{"token":"test-token"}}],`+
			`"contexts":[{"name":"dev","context":{"cluster":"dev","user":"admin"}}],`+
			`"current-context":"dev"}`, s.URL)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"metadata":{"guid":"key-guid"},"entity":{"name":"key","credentials":{"kubeconfig":%s}}}`, kubeconfig)
	case r.Method == http.MethodDelete && r.URL.Path == "/v2/service_keys/key-guid":
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (s *clusterServer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.calls...)
}

func (s *clusterServer) SetPhases(phases ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases = phases
}

// fakeDatabase records the databases and users managed by the broker.
type fakeDatabase struct {
	mu        sync.Mutex
	databases map[string]bool
	users     map[string]string
	dropped   []string
}

func newFakeDatabase() *fakeDatabase {
	return &fakeDatabase{databases: map[string]bool{}, users: map[string]string{}}
}

func (f *fakeDatabase) DatabaseExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.databases[name], nil
}

func (f *fakeDatabase) CreateDatabase(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.databases[name] = true
	return nil
}

func (f *fakeDatabase) DeleteDatabase(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.databases, name)
	f.dropped = append(f.dropped, name)
	return nil
}

func (f *fakeDatabase) CreateUser(_ context.Context, database, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.databases[database] {
		return fmt.Errorf("database %s not found", database)
	}
	if _, ok := f.users[database+"/"+username]; ok {
		return fmt.Errorf("user %s@%s already exists", username, database)
	}
	f.users[database+"/"+username] = password
	return nil
}

func (f *fakeDatabase) DeleteUser(_ context.Context, database, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, database+"/"+username)
	return nil
}

func (f *fakeDatabase) ConnectionString(database, username, password string) string {
	return mongo.ConnectionString("mongo.example.com:27017", database, username, password)
}

func (f *fakeDatabase) Databases() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.databases))
	for k, v := range f.databases {
		out[k] = v
	}
	return out
}

func (f *fakeDatabase) Users() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

func (f *fakeDatabase) Dropped() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.dropped...)
}

type testBroker struct {
	*Broker
	server *clusterServer
	db     *fakeDatabase
	kube   client.Client
}

func newTestBroker(t *testing.T) *testBroker {
	t.Helper()
	return newTestBrokerWithClient(t, fake.NewClientBuilder().Build())
}

// newTestBrokerWithClient returns a test broker storing its records and
// credentials with the given client.
func newTestBrokerWithClient(t *testing.T, kube client.WithWatch) *testBroker {
	t.Helper()

	log := zap.NewNop().Sugar()
	server := newClusterServer(t)

	resolver, err := params.NewResolver(params.Defaults{
		Name:               "mongo",
		ServiceTimeout:     10 * time.Millisecond,
		Image:              "mongo:4.4.6",
		Version:            "4.4.6",
		StorageProvisioner: "kubernetes.io/gce-pd",
	})
	if err != nil {
		t.Fatal(err)
	}

	renderer, err := manifest.NewRenderer()
	if err != nil {
		t.Fatal(err)
	}

	db := newFakeDatabase()
	pool := worker.NewPool(worker.Options{Workers: 2}, log)
	t.Cleanup(func() { _ = pool.Shutdown(ctx) })

	b := New(Options{
		Catalog:     catalog.New(catalog.DefaultServiceID),
		Resolver:    resolver,
		Registry:    registry.NewClient(false, log),
		RegistryURL: server.URL,
		Resources:   resmgr.NewResourceManager(renderer, resmgr.NewClientFactory(false), log),
		Records:     &inventory.Storage{Client: kube, Namespace: brokerNamespace, Owner: "kubebroker"},
		Credentials: &credstore.Store{Client: kube, Namespace: brokerNamespace, Owner: "kubebroker"},
		Database:    db,
		Operations:  operation.NewMemoryStore(),
		Pool:        pool,
		Log:         log,
	})

	return &testBroker{Broker: b, server: server, db: db, kube: kube}
}

// clusterParameters returns the caller parameters targeting the test cluster.
func (tb *testBroker) clusterParameters() map[string]interface{} {
	return map[string]interface{}{
		"token":        "test-token",
		"master_url":   tb.server.URL,
		"namespace":    "tenant",
		"service_name": "mongo",
	}
}

// waitOperation polls the last operation until it reaches a terminal state.
func waitOperation(g *WithT, b *Broker, id string) operation.Status {
	var status operation.Status
	g.Eventually(func() bool {
		s, err := b.LastOperation(ctx, id)
		if err != nil {
			return false
		}
		status = *s
		return status.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond).Should(BeTrue())
	return status
}
