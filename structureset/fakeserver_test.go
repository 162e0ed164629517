package structureset

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jathurchan/proknow/client"
	"github.com/jathurchan/proknow/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	testWorkspaceID    = "ws1"
	testStructureSetID = "ss1"
)

type fakeROI struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Color types.Color     `json:"color"`
	Type  types.ROIType   `json:"type"`
	Tag   string          `json:"tag"`
	data  json.RawMessage // geometry stored for Tag
}

type fakeVersion struct {
	id        string
	status    types.VersionStatus
	label     *string
	message   *string
	createdAt time.Time
	rois      []*fakeROI
}

// fakeProKnow is an in-memory ProKnow server for one structure set.
type fakeProKnow struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	seq      int
	versions []*fakeVersion
	draft    []*fakeROI // nil when no draft exists
	lockID   string
	lockTTL  time.Duration
	requests []string

	// exportChecks is how many status checks report "processing" before "ready".
	exportChecks int
	statusCalls  map[string]int

	// failNext makes the next request matching "METHOD pattern-suffix" fail with the status.
	failNext map[string]int

	// maxRetries is the retry budget of requestors built by newService.
	maxRetries int
}

func newFakeProKnow(t *testing.T, roiNames ...string) *fakeProKnow {
	t.Helper()

	f := &fakeProKnow{
		t:           t,
		lockTTL:     10 * time.Minute,
		statusCalls: map[string]int{},
		failNext:    map[string]int{},
	}

	original := "original"
	initial := &fakeVersion{id: f.nextID("v"), status: types.StatusApproved, label: &original, createdAt: time.Now()}
	for _, name := range roiNames {
		initial.rois = append(initial.rois, &fakeROI{
			ID: f.nextID("roi"), Name: name, Color: types.ColorRed, Type: types.ROIPTV, Tag: f.nextID("tag"),
		})
	}
	f.versions = append(f.versions, initial)

	base := "/workspaces/{wid}/structuresets/{id}"
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, f.wrap(pattern, h))
	}

	handle("GET "+base, f.getCurrent)
	handle("PUT "+base+"/draft/lock", f.acquireLock)
	handle("PUT "+base+"/draft/lock/{lock}", f.renewLock)
	handle("DELETE "+base+"/draft/lock/{lock}", f.releaseLock)
	handle("DELETE "+base+"/draft", f.discardDraft)
	handle("POST "+base+"/draft/rois", f.createROI)
	handle("PUT "+base+"/draft/rois/{rid}", f.updateROI)
	handle("DELETE "+base+"/draft/rois/{rid}", f.deleteROI)
	handle("PUT "+base+"/draft/rois/{rid}/data", f.saveROIData)
	handle("GET "+base+"/rois/{rid}/data/{tag}", f.getROIData)
	handle("GET "+base+"/versions", f.listVersions)
	handle("GET "+base+"/versions/{vid}", f.getVersion)
	handle("PUT "+base+"/versions/{vid}", f.saveVersion)
	handle("DELETE "+base+"/versions/{vid}", f.deleteVersion)
	handle("GET "+base+"/versions/{vid}/status", f.versionStatus)
	handle("GET "+base+"/versions/{vid}/dicom", f.versionDICOM)
	handle("POST "+base+"/approve", f.approve)
	handle("POST "+base+"/approve/{vid}", f.revert)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// newService returns a StructureSets bound to the fake server with fast
// download polling and an in-memory filesystem.
func (f *fakeProKnow) newService(t *testing.T, opts ...Option) (*StructureSets, afero.Fs) {
	t.Helper()

	requestor, err := client.NewRequestorBuilder(f.server.URL).
		WithCredentials("key-id", "key-secret").
		WithMetrics(false).
		WithRateLimit(0, 0).
		WithRetryOptions(f.maxRetries, time.Millisecond, time.Millisecond, 1).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = requestor.Close() })

	fs := afero.NewMemMapFs()
	defaults := []Option{WithFs(fs), WithDownloadPolling(time.Millisecond, 5)}
	return New(requestor, append(defaults, opts...)...), fs
}

func (f *fakeProKnow) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

func (f *fakeProKnow) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeProKnow) countRequests(method, suffix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r == method+" "+suffix {
			n++
		}
	}
	return n
}

func (f *fakeProKnow) currentLockID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lockID
}

func (f *fakeProKnow) hasDraft() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft != nil
}

func (f *fakeProKnow) failOnce(method, suffix string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[method+" "+suffix] = status
}

// wrap serializes handlers, records requests by pattern suffix and rejects
// unknown structure sets.
func (f *fakeProKnow) wrap(pattern string, h http.HandlerFunc) http.HandlerFunc {
	method, path, _ := cutPattern(pattern)
	suffix := path[len("/workspaces/{wid}/structuresets/{id}"):]
	key := method + " " + suffix

	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.requests = append(f.requests, key)
		if r.PathValue("wid") != testWorkspaceID || r.PathValue("id") != testStructureSetID {
			http.Error(w, "structure set not found", http.StatusNotFound)
			return
		}
		if status, ok := f.failNext[key]; ok {
			delete(f.failNext, key)
			http.Error(w, "injected failure", status)
			return
		}
		h(w, r)
	}
}

func cutPattern(pattern string) (method, path string, ok bool) {
	for i := range pattern {
		if pattern[i] == ' ' {
			return pattern[:i], pattern[i+1:], true
		}
	}
	return "", pattern, false
}

func (f *fakeProKnow) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		f.t.Errorf("encode response: %v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "malformed body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (f *fakeProKnow) requireLock(w http.ResponseWriter, r *http.Request) bool {
	if f.lockID == "" || r.Header.Get(client.LockHeader) != f.lockID {
		http.Error(w, "draft lock is not valid", http.StatusForbidden)
		return false
	}
	return true
}

func (f *fakeProKnow) issueLock() types.Lock {
	f.lockID = f.nextID("lock")
	now := time.Now().UTC()
	return types.Lock{
		ID:              f.lockID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(f.lockTTL),
		TTLMilliseconds: f.lockTTL.Milliseconds(),
	}
}

func (f *fakeProKnow) current() *fakeVersion {
	for _, v := range f.versions {
		if v.status == types.StatusApproved {
			return v
		}
	}
	return nil
}

func (f *fakeProKnow) findVersion(id string) *fakeVersion {
	for _, v := range f.versions {
		if v.id == id {
			return v
		}
	}
	return nil
}

func (f *fakeProKnow) findDraftROI(id string) *fakeROI {
	for _, roi := range f.draft {
		if roi.ID == id {
			return roi
		}
	}
	return nil
}

func (f *fakeProKnow) item(version string, status types.VersionStatus, rois []*fakeROI) map[string]any {
	if rois == nil {
		rois = []*fakeROI{}
	}
	return map[string]any{
		"id":                 testStructureSetID,
		"patient":            "p1",
		"name":               "RS Plan",
		"uid":                "1.2.3.4",
		"modality":           "RTSTRUCT",
		"frame_of_reference": "1.2.3",
		"version":            version,
		"status":             status,
		"rois":               rois,
	}
}

func copyROIs(rois []*fakeROI) []*fakeROI {
	out := make([]*fakeROI, 0, len(rois))
	for _, roi := range rois {
		c := *roi
		out = append(out, &c)
	}
	return out
}

func (f *fakeProKnow) getCurrent(w http.ResponseWriter, _ *http.Request) {
	v := f.current()
	f.writeJSON(w, f.item(v.id, v.status, v.rois))
}

func (f *fakeProKnow) acquireLock(w http.ResponseWriter, _ *http.Request) {
	if f.lockID != "" {
		http.Error(w, "structure set is locked", http.StatusConflict)
		return
	}
	if f.draft == nil {
		f.draft = copyROIs(f.current().rois)
	}
	f.writeJSON(w, f.issueLock())
}

func (f *fakeProKnow) renewLock(w http.ResponseWriter, r *http.Request) {
	if f.lockID == "" || r.PathValue("lock") != f.lockID {
		http.Error(w, "lock expired", http.StatusConflict)
		return
	}
	f.writeJSON(w, f.issueLock())
}

func (f *fakeProKnow) releaseLock(w http.ResponseWriter, r *http.Request) {
	if f.lockID == "" || r.PathValue("lock") != f.lockID {
		http.Error(w, "lock expired", http.StatusConflict)
		return
	}
	f.lockID = ""
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeProKnow) discardDraft(w http.ResponseWriter, r *http.Request) {
	if !f.requireLock(w, r) {
		return
	}
	f.draft = nil
	f.lockID = ""
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeProKnow) createROI(w http.ResponseWriter, r *http.Request) {
	if !f.requireLock(w, r) {
		return
	}
	var roi fakeROI
	if !decodeBody(w, r, &roi) {
		return
	}
	roi.ID = f.nextID("roi")
	roi.Tag = f.nextID("tag")
	f.draft = append(f.draft, &roi)
	f.writeJSON(w, map[string]string{"id": roi.ID, "tag": roi.Tag})
}

func (f *fakeProKnow) updateROI(w http.ResponseWriter, r *http.Request) {
	if !f.requireLock(w, r) {
		return
	}
	roi := f.findDraftROI(r.PathValue("rid"))
	if roi == nil {
		http.Error(w, "roi not found", http.StatusNotFound)
		return
	}
	var update fakeROI
	if !decodeBody(w, r, &update) {
		return
	}
	roi.Name, roi.Color, roi.Type = update.Name, update.Color, update.Type
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeProKnow) deleteROI(w http.ResponseWriter, r *http.Request) {
	if !f.requireLock(w, r) {
		return
	}
	id := r.PathValue("rid")
	for i, roi := range f.draft {
		if roi.ID == id {
			f.draft = append(f.draft[:i], f.draft[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "roi not found", http.StatusNotFound)
}

func (f *fakeProKnow) saveROIData(w http.ResponseWriter, r *http.Request) {
	if !f.requireLock(w, r) {
		return
	}
	roi := f.findDraftROI(r.PathValue("rid"))
	if roi == nil {
		http.Error(w, "roi not found", http.StatusNotFound)
		return
	}
	var raw json.RawMessage
	if !decodeBody(w, r, &raw) {
		return
	}
	roi.data = raw
	roi.Tag = f.nextID("tag")
	f.writeJSON(w, map[string]string{"tag": roi.Tag})
}

func (f *fakeProKnow) getROIData(w http.ResponseWriter, r *http.Request) {
	id, tag := r.PathValue("rid"), r.PathValue("tag")
	candidates := copyROIs(f.draft)
	for _, v := range f.versions {
		candidates = append(candidates, v.rois...)
	}
	for _, roi := range candidates {
		if roi.ID == id && roi.Tag == tag {
			w.Header().Set("Content-Type", "application/json")
			if roi.data == nil {
				_, _ = w.Write([]byte(`{"contours":[],"points":[]}`))
				return
			}
			_, _ = w.Write(roi.data)
			return
		}
	}
	http.Error(w, "roi data not found", http.StatusNotFound)
}

func (f *fakeProKnow) listVersions(w http.ResponseWriter, _ *http.Request) {
	infos := []VersionInfo{}
	if f.draft != nil {
		infos = append(infos, VersionInfo{ID: types.DraftToken, Status: types.StatusDraft, CreatedAt: time.Now().UTC()})
	}
	for i := len(f.versions) - 1; i >= 0; i-- {
		v := f.versions[i]
		infos = append(infos, VersionInfo{ID: v.id, Status: v.status, Label: v.label, Message: v.message, CreatedAt: v.createdAt})
	}
	f.writeJSON(w, infos)
}

func (f *fakeProKnow) getVersion(w http.ResponseWriter, r *http.Request) {
	vid := r.PathValue("vid")
	if vid == types.DraftToken {
		if f.draft == nil {
			http.Error(w, "no draft", http.StatusNotFound)
			return
		}
		f.writeJSON(w, f.item(types.DraftToken, types.StatusDraft, f.draft))
		return
	}
	v := f.findVersion(vid)
	if v == nil {
		http.Error(w, "version not found", http.StatusNotFound)
		return
	}
	f.writeJSON(w, f.item(v.id, v.status, v.rois))
}

func (f *fakeProKnow) saveVersion(w http.ResponseWriter, r *http.Request) {
	v := f.findVersion(r.PathValue("vid"))
	if v == nil {
		http.Error(w, "version not found", http.StatusNotFound)
		return
	}
	var body struct {
		Label   *string `json:"label"`
		Message *string `json:"message"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	v.label, v.message = body.Label, body.Message
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeProKnow) deleteVersion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("vid")
	for i, v := range f.versions {
		if v.id == id {
			f.versions = append(f.versions[:i], f.versions[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "version not found", http.StatusNotFound)
}

func (f *fakeProKnow) versionStatus(w http.ResponseWriter, r *http.Request) {
	vid := r.PathValue("vid")
	if f.findVersion(vid) == nil {
		http.Error(w, "version not found", http.StatusNotFound)
		return
	}
	f.statusCalls[vid]++
	status := "processing"
	if f.statusCalls[vid] > f.exportChecks {
		status = "ready"
	}
	f.writeJSON(w, map[string]string{"status": status})
}

func (f *fakeProKnow) versionDICOM(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write([]byte("DICM-" + r.PathValue("vid")))
}

func (f *fakeProKnow) approve(w http.ResponseWriter, r *http.Request) {
	if !f.requireLock(w, r) {
		return
	}
	var body struct {
		Label   *string `json:"label"`
		Message *string `json:"message"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	for _, v := range f.versions {
		if v.status == types.StatusApproved {
			v.status = types.StatusArchived
		}
	}
	v := &fakeVersion{
		id:        f.nextID("v"),
		status:    types.StatusApproved,
		label:     body.Label,
		message:   body.Message,
		createdAt: time.Now().UTC(),
		rois:      f.draft,
	}
	f.versions = append(f.versions, v)
	f.draft = nil
	f.lockID = ""
	f.writeJSON(w, f.item(v.id, v.status, v.rois))
}

func (f *fakeProKnow) revert(w http.ResponseWriter, r *http.Request) {
	target := f.findVersion(r.PathValue("vid"))
	if target == nil {
		http.Error(w, "version not found", http.StatusNotFound)
		return
	}
	for _, v := range f.versions {
		v.status = types.StatusArchived
	}
	target.status = types.StatusApproved
	f.writeJSON(w, f.item(target.id, target.status, target.rois))
}
