package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fpang/minipaint/internal/chat"
	"github.com/fpang/minipaint/internal/inventory"
	"github.com/fpang/minipaint/internal/plan"
	"github.com/fpang/minipaint/internal/planner"
	"github.com/fpang/minipaint/internal/settings"
	"github.com/fpang/minipaint/internal/store"
)

// fakeClient answers each operation from a queue of canned replies; the
// last reply repeats and an error entry is returned as the error.
type fakeClient struct {
	mu      sync.Mutex
	replies map[string][]any
	calls   map[string]int
}

func newFake() *fakeClient {
	return &fakeClient{replies: map[string][]any{}, calls: map[string]int{}}
}

func (f *fakeClient) on(op string, replies ...any) *fakeClient {
	f.replies[op] = append(f.replies[op], replies...)
	return f
}

func (f *fakeClient) Profile() chat.Profile {
	return chat.Profile{Backend: chat.BackendGemini, Structured: true}
}

func (f *fakeClient) CompleteText(ctx context.Context, prompt string, opts chat.Options) (*chat.Completion, error) {
	return f.answer(opts.Op)
}

func (f *fakeClient) CompleteVision(ctx context.Context, prompt string, img chat.Image, opts chat.Options) (*chat.Completion, error) {
	return f.answer(opts.Op)
}

func (f *fakeClient) answer(op string) (*chat.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	queue := f.replies[op]
	if len(queue) == 0 {
		return nil, errors.New("no canned reply for " + op)
	}
	reply := queue[0]
	if len(queue) > 1 {
		f.replies[op] = queue[1:]
	}
	if err, ok := reply.(error); ok {
		return nil, err
	}
	return &chat.Completion{Text: reply.(string), FinishReason: "STOP"}, nil
}

type testServer struct {
	app     *app
	handler http.Handler
	fake    *fakeClient
	built   []settings.Settings
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	ctx := context.Background()

	c := settings.DefaultConfig()
	c.Database = filepath.Join(t.TempDir(), "minipaint.db")
	st, err := store.Open(ctx, c.Database)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	a, err := newApp(ctx, c, st)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	ts := &testServer{app: a, fake: newFake()}
	a.newClient = func(ctx context.Context, s settings.Settings) (chat.Client, error) {
		ts.built = append(ts.built, s)
		return ts.fake, nil
	}
	policy := chat.DefaultRetryPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	a.options = append(a.options, planner.WithRetryPolicy(policy))
	ts.handler = a.routes()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func pngPayload(t *testing.T) imagePayload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: 20, B: 20, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return imagePayload{Data: base64.StdEncoding.EncodeToString(buf.Bytes()), Type: "image/png"}
}

func TestSettingsAPI(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/settings", nil)
	if got := decode[settings.Settings](t, rec); got.Provider != chat.BackendGemini || got.LocalEndpoint != chat.DefaultLocalEndpoint {
		t.Errorf("GET settings = %+v, want defaults", got)
	}

	rec = ts.do(t, http.MethodPut, "/api/settings", settings.Settings{Provider: "openai", LocalEndpoint: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid PUT status = %d, want 400", rec.Code)
	}

	if _, err := ts.app.currentPlanner(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := settings.Settings{Provider: chat.BackendLocal, LocalEndpoint: "http://gpu:1234/v1"}
	rec = ts.do(t, http.MethodPut, "/api/settings", want)
	if rec.Code != http.StatusOK || decode[settings.Settings](t, rec) != want {
		t.Fatalf("PUT settings = %d %s", rec.Code, rec.Body.String())
	}
	if _, err := ts.app.currentPlanner(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := ts.app.currentPlanner(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ts.built) != 2 || ts.built[1] != want {
		t.Errorf("planner should be rebuilt once after the change, built for %+v", ts.built)
	}
}

func TestInventoryAPI(t *testing.T) {
	ts := newTestServer(t)
	ts.fake.on("getHexForPaint", "#112233")

	rec := ts.do(t, http.MethodPost, "/api/inventory/paints", inventory.Paint{Brand: "Citadel", Name: "Retributor Armour", Hex: "d4af37"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add paint = %d %s", rec.Code, rec.Body.String())
	}
	gold := decode[inventory.Paint](t, rec)
	if gold.ID == "" || gold.Hex != "#D4AF37" || gold.Type != inventory.PaintAcrylic {
		t.Errorf("added paint = %+v", gold)
	}

	rec = ts.do(t, http.MethodPost, "/api/inventory/paints", inventory.Paint{Brand: "Vallejo", Name: "Dark Sea Blue"})
	if rec.Code != http.StatusCreated || decode[inventory.Paint](t, rec).Hex != "#112233" {
		t.Errorf("paint without hex = %d %s, want the looked-up hex", rec.Code, rec.Body.String())
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"duplicate paint", http.MethodPost, "/api/inventory/paints", inventory.Paint{Brand: " citadel", Name: "RETRIBUTOR ARMOUR ", Hex: "#000"}, http.StatusConflict},
		{"bad hex", http.MethodPost, "/api/inventory/paints", inventory.Paint{Brand: "Citadel", Name: "X", Hex: "#zz"}, http.StatusBadRequest},
		{"missing brand", http.MethodPost, "/api/inventory/paints", inventory.Paint{Name: "X", Hex: "#fff"}, http.StatusBadRequest},
		{"bad body", http.MethodPost, "/api/inventory/paints", "{", http.StatusBadRequest},
		{"thinner", http.MethodPost, "/api/inventory/thinners", inventory.Thinner{Brand: "Vallejo", Composition: inventory.CompositionOriginal}, http.StatusCreated},
		{"bad thinner", http.MethodPost, "/api/inventory/thinners", inventory.Thinner{Brand: "Vallejo", Composition: "Agua"}, http.StatusBadRequest},
		{"varnish", http.MethodPost, "/api/inventory/varnishes", inventory.Varnish{Brand: "Vallejo", Finish: inventory.FinishFosco}, http.StatusCreated},
		{"wash", http.MethodPost, "/api/inventory/washes", inventory.Wash{Brand: "Citadel", Composition: "Nuln Oil", Hex: "#111"}, http.StatusCreated},
		{"wash bad hex", http.MethodPost, "/api/inventory/washes", inventory.Wash{Brand: "Citadel", Composition: "Agrax", Hex: "brown"}, http.StatusBadRequest},
		{"unknown kind", http.MethodPost, "/api/inventory/brushes", map[string]string{"brand": "x"}, http.StatusNotFound},
		{"remove unknown id", http.MethodDelete, "/api/inventory/paints/nope", nil, http.StatusNotFound},
		{"remove unknown kind", http.MethodDelete, "/api/inventory/brushes/1", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := ts.do(t, tt.method, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	inv := decode[inventory.Inventory](t, ts.do(t, http.MethodGet, "/api/inventory", nil))
	if len(inv.Paints) != 2 || len(inv.Thinners) != 1 || len(inv.Varnishes) != 1 || len(inv.Washes) != 1 {
		t.Fatalf("inventory = %+v", inv)
	}
	if inv.Washes[0].Hex != "#111111" {
		t.Errorf("wash hex = %q, want #111111", inv.Washes[0].Hex)
	}

	gold.Name = "Retributor"
	gold.Hex = "#D4AF38"
	if rec := ts.do(t, http.MethodPut, "/api/inventory/paints/"+gold.ID, gold); rec.Code != http.StatusOK {
		t.Errorf("update paint = %d %s", rec.Code, rec.Body.String())
	}
	if rec := ts.do(t, http.MethodDelete, "/api/inventory/paints/"+gold.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("remove paint = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, "/api/inventory/thinners/"+inv.Thinners[0].ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("remove thinner = %d", rec.Code)
	}
	inv = decode[inventory.Inventory](t, ts.do(t, http.MethodGet, "/api/inventory", nil))
	if len(inv.Paints) != 1 || len(inv.Thinners) != 0 {
		t.Errorf("after removal = %+v", inv)
	}
}

func TestImportAPI(t *testing.T) {
	ts := newTestServer(t)
	ts.fake.on("parseBulkInventory", `{
		"paints":[{"brand":"Citadel","name":"Mephiston Red","type":"Acrylic","hex":"#9A1115"},
		          {"brand":"Citadel","name":"mephiston red","type":"Acrylic","hex":"#9A1115"}],
		"thinners":[{"brand":"Vallejo","composition":"Original"}],
		"varnishes":[],"washes":[]
	}`, `{"paints":[],"thinners":[],"varnishes":[],"washes":[]}`)

	rec := ts.do(t, http.MethodPost, "/api/inventory/import", importRequest{Text: "Mephiston Red\nMephiston Red\nThinner"})
	if rec.Code != http.StatusOK {
		t.Fatalf("import = %d %s", rec.Code, rec.Body.String())
	}
	got := decode[importResponse](t, rec)
	if got.Added != 2 || got.Skipped != 1 || len(got.Inventory.Paints) != 1 {
		t.Errorf("import = %+v", got)
	}

	if rec := ts.do(t, http.MethodPost, "/api/inventory/import", importRequest{Text: "???"}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty import = %d, want 422", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/inventory/import", importRequest{Text: "  "}); rec.Code != http.StatusBadRequest {
		t.Errorf("blank text = %d, want 400", rec.Code)
	}
}

func TestHexAPI(t *testing.T) {
	ts := newTestServer(t)
	ts.fake.on("getHexForPaint", "#d4af37", "gold-ish", errors.New("Error 429, Status: RESOURCE_EXHAUSTED"))

	rec := ts.do(t, http.MethodPost, "/api/hex", hexRequest{Brand: "VMC", Name: "Gold"})
	if got := decode[map[string]string](t, rec); rec.Code != http.StatusOK || got["hex"] != "#D4AF37" || got["description"] == "" {
		t.Errorf("hex = %d %v", rec.Code, got)
	}
	if rec := ts.do(t, http.MethodPost, "/api/hex", hexRequest{Brand: "VMC", Name: "Gold"}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("no hex = %d, want 422", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/api/hex", hexRequest{Brand: "VMC", Name: "Gold"})
	if rec.Code != http.StatusTooManyRequests || !strings.Contains(rec.Body.String(), "limite") {
		t.Errorf("quota = %d %s, want 429", rec.Code, rec.Body.String())
	}
	if rec := ts.do(t, http.MethodPost, "/api/hex", hexRequest{Brand: "VMC"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing name = %d, want 400", rec.Code)
	}
}

func TestPartsAPI(t *testing.T) {
	ts := newTestServer(t)
	ts.fake.on("identifyParts", `{"parts":[
		{"name":"Capa","region":{"x":0.1,"y":0.2,"width":0.3,"height":0.4}},
		{"name":"Espada","region":{"x":0.6,"y":0.1,"width":0.1,"height":0.5}}
	]}`)

	capa := plan.RegionRect{X: 0, Y: 0, Width: 0.5, Height: 0.5}
	rec := ts.do(t, http.MethodPost, "/api/parts", partsRequest{
		Image:   pngPayload(t),
		Regions: []plan.RegionItem{{PartName: "capa", Regions: []plan.RegionRect{capa}}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("parts = %d %s", rec.Code, rec.Body.String())
	}
	got := decode[partsResponse](t, rec)
	if len(got.Suggestions) != 2 || len(got.Regions) != 2 {
		t.Fatalf("parts = %+v", got)
	}
	if r := got.Regions[0]; !r.Confirmed || len(r.Regions) != 1 || r.Regions[0] != capa || r.SuggestedRegion != nil {
		t.Errorf("user part should keep its region: %+v", r)
	}
	if r := got.Regions[1]; r.PartName != "Espada" || r.Confirmed || r.SuggestedRegion == nil {
		t.Errorf("new part should be an unconfirmed suggestion: %+v", r)
	}

	bad := partsRequest{Image: imagePayload{Data: base64.StdEncoding.EncodeToString([]byte("hello")), Type: "text/plain"}}
	if rec := ts.do(t, http.MethodPost, "/api/parts", bad); rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported image = %d, want 400", rec.Code)
	}
}

const (
	planColors = `{"colors":[
		{"colorName":"Vermelho","hex":"#B41414","location":"Capa","needsMixing":false}
	]}`
	planSteps = `{"steps":[
		{"stepNumber":1,"partName":"Capa","paintsToUse":[{"name":"Red","brand":"VMC","hex":"#B41414","purpose":"base"}],
		 "technique":"layering","tool":"Pincel 2","dilution":"1:1","tips":["Camadas finas"]},
		{"stepNumber":2,"partName":"Verniz final","technique":"varnish"}
	],"fixationTips":["Verniz fosco"]}`
)

func TestPlanAPI(t *testing.T) {
	ts := newTestServer(t)
	ts.fake.on(plan.PhaseColors, planColors).on(plan.PhaseSteps, planSteps)

	capa := plan.RegionRect{X: 0.1, Y: 0.1, Width: 0.4, Height: 0.4}
	rec := ts.do(t, http.MethodPost, "/api/plans", planRequest{
		ProjectName: "Paladino",
		Source:      "Warhammer",
		Image:       pngPayload(t),
		Regions:     []plan.RegionItem{{PartName: "Capa", Regions: []plan.RegionRect{capa}, Confirmed: true}},
		Save:        true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate = %d %s", rec.Code, rec.Body.String())
	}
	got := decode[planResponse](t, rec)
	if got.ID == "" || got.Plan == nil || got.Plan.ProjectName != "Paladino" || len(got.Plan.Steps) == 0 {
		t.Fatalf("plan response = %+v", got)
	}
	if regions := got.Plan.Steps[0].ImageRegions; len(regions) != 1 || regions[0] != capa {
		t.Errorf("step regions = %+v, want the user's rectangle", regions)
	}
	if n := ts.fake.calls[plan.PhaseParts]; n != 0 {
		t.Errorf("part segmentation ran %d times with user regions", n)
	}

	list := decode[[]store.PlanSummary](t, ts.do(t, http.MethodGet, "/api/plans", nil))
	if len(list) != 1 || list[0].ID != got.ID || list[0].ProjectName != "Paladino" {
		t.Errorf("list = %+v", list)
	}
	if rec := ts.do(t, http.MethodGet, "/api/plans?limit=0", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", rec.Code)
	}

	saved := decode[plan.ProjectPlan](t, ts.do(t, http.MethodGet, "/api/plans/"+got.ID, nil))
	if saved.ProjectName != "Paladino" || len(saved.Steps) != len(got.Plan.Steps) {
		t.Errorf("saved plan = %+v", saved)
	}
	if rec := ts.do(t, http.MethodDelete, "/api/plans/"+got.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/plans/"+got.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", rec.Code)
	}
}

func TestPlanAPIFailures(t *testing.T) {
	ts := newTestServer(t)
	ts.fake.on(plan.PhaseColors, `{"colors":[]}`)

	rec := ts.do(t, http.MethodPost, "/api/plans", planRequest{ProjectName: "X", Image: pngPayload(t)})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("no colours = %d %s, want 422", rec.Code, rec.Body.String())
	}
	if rec := ts.do(t, http.MethodPost, "/api/plans", planRequest{ProjectName: "X"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing image = %d, want 400", rec.Code)
	}
	list := decode[[]store.PlanSummary](t, ts.do(t, http.MethodGet, "/api/plans", nil))
	if len(list) != 0 {
		t.Errorf("failed generations must not be archived: %+v", list)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/plans", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("foreign origins must not be allowed")
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{planner.ErrNoPlan, http.StatusUnprocessableEntity},
		{errors.Join(planner.ErrNoPlan, chat.Malformed("steps", errors.New("x"))), http.StatusUnprocessableEntity},
		{&chat.Error{Kind: chat.KindQuotaExceeded}, http.StatusTooManyRequests},
		{&chat.Error{Kind: chat.KindBackendUnreachable}, http.StatusBadGateway},
		{inventory.ErrNotFound, http.StatusNotFound},
		{store.ErrNotFound, http.StatusNotFound},
		{inventory.ErrDuplicate, http.StatusConflict},
		{settings.ErrInvalid, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
