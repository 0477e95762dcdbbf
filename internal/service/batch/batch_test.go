package batch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/image-downloader/internal/adapter/filesystem"
	"github.com/vertextoedge/image-downloader/internal/adapter/httpfetch"
	"github.com/vertextoedge/image-downloader/internal/adapter/sqlite"
	"github.com/vertextoedge/image-downloader/internal/domain"
	"github.com/vertextoedge/image-downloader/internal/domain/event"
	"github.com/vertextoedge/image-downloader/internal/service/saver"
)

// mockFetcher implements port.Fetcher for testing
type mockFetcher struct {
	mu        sync.Mutex
	responses map[string]domain.FetchResult
	errs      map[string]error
	delay     time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int32
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (domain.FetchResult, error) {
	m.calls.Add(1)
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		cur := m.maxActive.Load()
		if n <= cur || m.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[url]; ok {
		return domain.FetchResult{URL: url}, err
	}
	if r, ok := m.responses[url]; ok {
		return r, nil
	}
	return domain.FetchResult{URL: url, StatusCode: 404, Empty: true, Reason: domain.ReasonStatus}, nil
}

// mockSaver implements port.Saver for testing
type mockSaver struct {
	mu    sync.Mutex
	saved []domain.Job
	err   error
	panic bool
}

func (m *mockSaver) Save(ctx context.Context, job domain.Job, payload []byte) (*domain.SavedImage, error) {
	if m.panic {
		panic("decoder exploded")
	}
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, job)
	return &domain.SavedImage{Path: "/out/" + job.URL, BytesWritten: int64(len(payload))}, nil
}

// recordingHandler collects every event
type recordingHandler struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (h *recordingHandler) Handle(e event.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return nil
}

func (h *recordingHandler) HandledEvents() []string { return []string{"*"} }

func (h *recordingHandler) count(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

func writeList(t *testing.T, root, rel string, urls ...string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	content := strings.Join(urls, "\n")
	if len(urls) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func ok(url string) domain.FetchResult {
	return domain.FetchResult{URL: url, FinalURL: url, StatusCode: 200, Payload: []byte("img")}
}

func TestOrchestrator_Run_Outcomes(t *testing.T) {
	root := t.TempDir()
	list := writeList(t, root, "cats/list.txt",
		"http://x/1.png",
		"http://x/2.png",
		"http://x/blacklisted.png",
		"http://x/down.png",
		"",
	)

	fetcher := &mockFetcher{
		responses: map[string]domain.FetchResult{
			"http://x/1.png":           ok("http://x/1.png"),
			"http://x/2.png":           ok("http://x/2.png"),
			"http://x/blacklisted.png": {URL: "http://x/blacklisted.png", StatusCode: 200, Empty: true, Reason: domain.ReasonBlacklisted},
		},
		errs: map[string]error{
			"http://x/down.png": errors.New("connection refused"),
			"":                  errors.New("unsupported protocol scheme"),
		},
	}
	sv := &mockSaver{}
	dispatcher := event.NewInMemoryDispatcher()
	recorder := &recordingHandler{}
	dispatcher.Subscribe(recorder)

	o := New(&Config{Workers: 2}, fetcher, sv, filesystem.NewManager(filepath.Join(root, "out")), dispatcher, zap.NewNop())
	stats, err := o.Run(context.Background(), root, []string{list})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.Total != 5 {
		t.Errorf("Total = %d, want 5", stats.Total)
	}
	if stats.Saved != 2 {
		t.Errorf("Saved = %d, want 2", stats.Saved)
	}
	if stats.Discarded != 1 || stats.BlacklistDiscards != 1 {
		t.Errorf("Discarded = %d, BlacklistDiscards = %d, want 1, 1", stats.Discarded, stats.BlacklistDiscards)
	}
	if stats.Failed != 2 {
		t.Errorf("Failed = %d, want 2", stats.Failed)
	}
	if stats.BytesWritten != 6 {
		t.Errorf("BytesWritten = %d, want 6", stats.BytesWritten)
	}
	if stats.RunID == "" {
		t.Error("RunID is empty")
	}
	if len(sv.saved) != 2 {
		t.Errorf("saver called %d times, want 2", len(sv.saved))
	}

	if n := recorder.count(event.NameRunStarted); n != 1 {
		t.Errorf("RunStarted = %d, want 1", n)
	}
	if n := recorder.count(event.NameRunCompleted); n != 1 {
		t.Errorf("RunCompleted = %d, want 1", n)
	}
	if n := recorder.count(event.NameImageSaved); n != 2 {
		t.Errorf("ImageSaved = %d, want 2", n)
	}
	if n := recorder.count(event.NameJobFailed); n != 2 {
		t.Errorf("JobFailed = %d, want 2", n)
	}
	if n := recorder.count(event.NameOutputDirCreated); n != 1 {
		t.Errorf("OutputDirCreated = %d, want 1 (output root)", n)
	}
	for _, e := range recorder.events {
		if d, ok := e.(event.JobDiscarded); ok && !errors.Is(d.Result.Err, domain.ErrBlacklisted) {
			t.Errorf("discarded %s with error %v, want ErrBlacklisted", d.Result.Job.URL, d.Result.Err)
		}
	}
}

func TestOrchestrator_Run_FailedJobsAreSkippable(t *testing.T) {
	root := t.TempDir()
	list := writeList(t, root, "a/list.txt", "http://x/1.png")

	fetcher := &mockFetcher{responses: map[string]domain.FetchResult{"http://x/1.png": ok("http://x/1.png")}}
	sv := &mockSaver{err: domain.ErrUndecodable}
	dispatcher := event.NewInMemoryDispatcher()
	recorder := &recordingHandler{}
	dispatcher.Subscribe(recorder)

	o := New(nil, fetcher, sv, filesystem.NewManager(filepath.Join(root, "out")), dispatcher, zap.NewNop())
	if _, err := o.Run(context.Background(), root, []string{list}); err != nil {
		t.Fatal(err)
	}

	var failed *event.JobFailed
	for _, e := range recorder.events {
		if f, ok := e.(event.JobFailed); ok {
			failed = &f
		}
	}
	if failed == nil {
		t.Fatal("no JobFailed event")
	}
	if !domain.IsSkippable(failed.Result.Err) {
		t.Errorf("error %v is not skippable", failed.Result.Err)
	}
	if !errors.Is(failed.Result.Err, domain.ErrUndecodable) {
		t.Errorf("error %v does not wrap ErrUndecodable", failed.Result.Err)
	}
}

func TestOrchestrator_Run_SaverPanic(t *testing.T) {
	root := t.TempDir()
	list := writeList(t, root, "a/list.txt", "http://x/1.png", "http://x/2.png")

	fetcher := &mockFetcher{responses: map[string]domain.FetchResult{
		"http://x/1.png": ok("http://x/1.png"),
		"http://x/2.png": ok("http://x/2.png"),
	}}
	o := New(nil, fetcher, &mockSaver{panic: true}, filesystem.NewManager(filepath.Join(root, "out")), nil, zap.NewNop())

	stats, err := o.Run(context.Background(), root, []string{list})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 2 {
		t.Errorf("Failed = %d, want 2", stats.Failed)
	}
}

func TestOrchestrator_Run_SkipsUnreadableList(t *testing.T) {
	root := t.TempDir()
	good := writeList(t, root, "a/list.txt", "http://x/1.png")
	missing := filepath.Join(root, "b", "gone.txt")

	fetcher := &mockFetcher{responses: map[string]domain.FetchResult{"http://x/1.png": ok("http://x/1.png")}}
	dispatcher := event.NewInMemoryDispatcher()
	recorder := &recordingHandler{}
	dispatcher.Subscribe(recorder)

	o := New(nil, fetcher, &mockSaver{}, filesystem.NewManager(filepath.Join(root, "out")), dispatcher, zap.NewNop())
	stats, err := o.Run(context.Background(), root, []string{missing, good})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.ListsSkipped != 1 {
		t.Errorf("ListsSkipped = %d, want 1", stats.ListsSkipped)
	}
	if stats.Saved != 1 {
		t.Errorf("Saved = %d, want 1", stats.Saved)
	}
	if n := recorder.count(event.NameListSkipped); n != 1 {
		t.Errorf("ListSkipped = %d, want 1", n)
	}
}

func TestOrchestrator_Run_BoundedConcurrency(t *testing.T) {
	root := t.TempDir()
	var urls []string
	responses := map[string]domain.FetchResult{}
	for i := 0; i < 40; i++ {
		u := "http://x/" + strings.Repeat("a", i+1) + ".png"
		urls = append(urls, u)
		responses[u] = ok(u)
	}
	list := writeList(t, root, "a/list.txt", urls...)

	fetcher := &mockFetcher{responses: responses, delay: 5 * time.Millisecond}
	o := New(&Config{Workers: 3, QueueSize: 4}, fetcher, &mockSaver{}, filesystem.NewManager(filepath.Join(root, "out")), nil, zap.NewNop())

	stats, err := o.Run(context.Background(), root, []string{list})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Saved != 40 {
		t.Errorf("Saved = %d, want 40", stats.Saved)
	}
	if got := fetcher.maxActive.Load(); got > 3 {
		t.Errorf("max concurrent fetches = %d, want <= 3", got)
	}
}

func TestOrchestrator_Run_Canceled(t *testing.T) {
	root := t.TempDir()
	list := writeList(t, root, "a/list.txt", "http://x/1.png", "http://x/2.png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &mockFetcher{}
	o := New(nil, fetcher, &mockSaver{}, filesystem.NewManager(filepath.Join(root, "out")), nil, zap.NewNop())
	stats, err := o.Run(ctx, root, []string{list})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if stats.Saved != 0 {
		t.Errorf("Saved = %d, want 0", stats.Saved)
	}
}

func TestOrchestrator_Run_OutputRootIsFile(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	if err := os.WriteFile(out, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	o := New(nil, &mockFetcher{}, &mockSaver{}, filesystem.NewManager(out), nil, zap.NewNop())
	if _, err := o.Run(context.Background(), root, nil); !errors.Is(err, domain.ErrNotADirectory) {
		t.Errorf("Run() error = %v, want ErrNotADirectory", err)
	}
}

func pngPayload(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	payload := pngPayload(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/cat.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	})
	mux.HandleFunc("/removed.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_EndToEnd(t *testing.T) {
	srv := newImageServer(t)
	root := t.TempDir()
	lists := filepath.Join(root, "lists")
	out := filepath.Join(root, "out")
	writeList(t, lists, "catfacts/list.txt", srv.URL+"/cat.png", srv.URL+"/missing.png")

	files, err := Discover(lists)
	if err != nil {
		t.Fatal(err)
	}

	fs := filesystem.NewManager(out)
	dispatcher := event.NewInMemoryDispatcher()
	fetcher := httpfetch.New(nil, domain.NewBlacklist())
	sv := saver.New(nil, fs, dispatcher, zap.NewNop())
	o := New(nil, fetcher, sv, fs, dispatcher, zap.NewNop())

	stats, err := o.Run(context.Background(), lists, files)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Saved != 1 || stats.Discarded != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}

	entries, err := os.ReadDir(filepath.Join(out, "list", "catfacts"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d files, want 1", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".png" {
		t.Errorf("saved %q, want .png", entries[0].Name())
	}
}

func TestRun_EndToEnd_Blacklist(t *testing.T) {
	srv := newImageServer(t)
	root := t.TempDir()
	lists := filepath.Join(root, "lists")
	out := filepath.Join(root, "out")
	list := writeList(t, lists, "album/list.txt", srv.URL+"/removed.png")

	fs := filesystem.NewManager(out)
	fetcher := httpfetch.New(nil, domain.NewBlacklist(srv.URL+"/removed.png"))
	sv := saver.New(nil, fs, nil, zap.NewNop())
	o := New(nil, fetcher, sv, fs, nil, zap.NewNop())

	stats, err := o.Run(context.Background(), lists, []string{list})
	if err != nil {
		t.Fatal(err)
	}
	if stats.BlacklistDiscards != 1 || stats.Saved != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if _, err := os.Stat(filepath.Join(out, "list", "album")); !os.IsNotExist(err) {
		t.Errorf("album dir exists for blacklisted url: %v", err)
	}
}

func TestRun_EndToEnd_History(t *testing.T) {
	srv := newImageServer(t)
	root := t.TempDir()
	lists := filepath.Join(root, "lists")
	out := filepath.Join(root, "out")
	list := writeList(t, lists, "catfacts/list.txt", srv.URL+"/cat.png", srv.URL+"/missing.png", "")

	store, err := sqlite.Open(filepath.Join(out, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	fs := filesystem.NewManager(out)
	dispatcher := event.NewInMemoryDispatcher()
	dispatcher.Subscribe(event.NewHistoryHandler(store))
	sv := saver.New(nil, fs, dispatcher, zap.NewNop())
	o := New(nil, httpfetch.New(nil, nil), sv, fs, dispatcher, zap.NewNop())

	stats, err := o.Run(context.Background(), lists, []string{list})
	if err != nil {
		t.Fatal(err)
	}

	run, err := store.GetRun(stats.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run == nil || run.Summary == nil {
		t.Fatalf("run %s not recorded as finished: %+v", stats.RunID, run)
	}
	if run.Summary.Total != 3 || run.Summary.Saved != 1 || run.Summary.Discarded != 1 || run.Summary.Failed != 1 {
		t.Errorf("summary = %+v", run.Summary)
	}

	records, err := store.ListResults(stats.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	var saved int
	for _, r := range records {
		if r.Outcome == domain.OutcomeSaved {
			saved++
			if r.Digest == "" || r.Path == "" {
				t.Errorf("saved record without digest or path: %+v", r)
			}
		}
	}
	if saved != 1 {
		t.Errorf("saved records = %d, want 1", saved)
	}
}
