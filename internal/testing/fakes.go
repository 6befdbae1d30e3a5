package testing

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/ttrack/internal/models"
	"google.golang.org/api/googleapi"
)

// Unauthorized is the error a Google API returns for a rejected bearer token.
func Unauthorized() error {
	return &googleapi.Error{Code: 401, Message: "Request had invalid authentication credentials."}
}

// FakeSpreadsheet is an in-memory Drive+Sheets double holding one grid per spreadsheet.
//
// Queue failures with Errors.Push using the operation names find, create, read, write and clear.
type FakeSpreadsheet struct {
	mu     sync.Mutex
	Errors ErrorQueue
	Titles map[string]string
	Grids  map[string][][]any
	Calls  map[string]int
	nextID int
}

func NewFakeSpreadsheet() *FakeSpreadsheet {
	return &FakeSpreadsheet{
		Titles: make(map[string]string),
		Grids:  make(map[string][][]any),
		Calls:  make(map[string]int),
	}
}

// CallCount returns how many times op was invoked.
func (f *FakeSpreadsheet) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[op]
}

// Seed creates a spreadsheet holding rows and returns its id.
func (f *FakeSpreadsheet) Seed(title string, rows [][]any) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.Titles[id] = title
	f.Grids[id] = rows
	return id
}

// Rows returns a copy of the grid for id.
func (f *FakeSpreadsheet) Rows(id string) [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]any, len(f.Grids[id]))
	for i, row := range f.Grids[id] {
		out[i] = append([]any(nil), row...)
	}
	return out
}

func (f *FakeSpreadsheet) newID() string {
	f.nextID++
	return fmt.Sprintf("sheet-%d", f.nextID)
}

func (f *FakeSpreadsheet) enter(op string) error {
	f.Calls[op]++
	return f.Errors.Next(op)
}

func (f *FakeSpreadsheet) FindByName(_ context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("find"); err != nil {
		return "", false, err
	}
	for i := 1; i <= f.nextID; i++ {
		id := fmt.Sprintf("sheet-%d", i)
		if f.Titles[id] == name {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (f *FakeSpreadsheet) Create(_ context.Context, title, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("create"); err != nil {
		return "", err
	}
	id := f.newID()
	f.Titles[id] = title
	f.Grids[id] = nil
	return id, nil
}

func (f *FakeSpreadsheet) ReadRange(_ context.Context, id, rng string) ([][]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("read"); err != nil {
		return nil, err
	}
	r, err := ParseA1(rng)
	if err != nil {
		return nil, err
	}

	var out [][]any
	grid := f.Grids[id]
	for row := r.Row0; row < len(grid) && (r.Row1 < 0 || row <= r.Row1); row++ {
		var cells []any
		for col := r.Col0; col < len(grid[row]) && col <= r.Col1; col++ {
			cells = append(cells, grid[row][col])
		}
		out = append(out, cells)
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *FakeSpreadsheet) WriteRange(_ context.Context, id, rng string, rows [][]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("write"); err != nil {
		return err
	}
	r, err := ParseA1(rng)
	if err != nil {
		return err
	}

	grid := f.Grids[id]
	for i, row := range rows {
		at := r.Row0 + i
		for len(grid) <= at {
			grid = append(grid, nil)
		}
		for j, cell := range row {
			col := r.Col0 + j
			for len(grid[at]) <= col {
				grid[at] = append(grid[at], "")
			}
			grid[at][col] = cell
		}
	}
	f.Grids[id] = grid
	return nil
}

func (f *FakeSpreadsheet) ClearRange(_ context.Context, id, rng string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("clear"); err != nil {
		return err
	}
	r, err := ParseA1(rng)
	if err != nil {
		return err
	}

	grid := f.Grids[id]
	for row := r.Row0; row < len(grid) && (r.Row1 < 0 || row <= r.Row1); row++ {
		for col := r.Col0; col < len(grid[row]) && col <= r.Col1; col++ {
			grid[row][col] = ""
		}
		trimmed := grid[row]
		for len(trimmed) > 0 && trimmed[len(trimmed)-1] == "" {
			trimmed = trimmed[:len(trimmed)-1]
		}
		grid[row] = trimmed
	}
	for len(grid) > 0 && len(grid[len(grid)-1]) == 0 {
		grid = grid[:len(grid)-1]
	}
	f.Grids[id] = grid
	return nil
}

// A1Range is a zero-based rectangle. Row1 is -1 when the range is open-ended.
type A1Range struct {
	Sheet      string
	Row0, Row1 int
	Col0, Col1 int
}

var cellPattern = regexp.MustCompile(`^([A-Z]*)(\d*)$`)

const maxColumn = 18277

// ParseA1 parses ranges such as Tasks!A1:I1, Tasks!A2:I, Tasks!1:1 and Tasks!A1.
func ParseA1(rng string) (A1Range, error) {
	r := A1Range{Col1: maxColumn, Row1: -1}
	ref := rng
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		r.Sheet = strings.Trim(rng[:i], "'")
		ref = rng[i+1:]
	}

	start, end, hasEnd := strings.Cut(ref, ":")
	c0, r0, ok := splitCell(start)
	if !ok {
		return A1Range{}, fmt.Errorf("bad A1 range %q", rng)
	}
	r.Col0, r.Row0 = max(c0, 0), max(r0, 0)

	if !hasEnd {
		if c0 >= 0 {
			r.Col1 = c0
		}
		if r0 >= 0 {
			r.Row1 = r0
		}
		return r, nil
	}

	c1, r1, ok := splitCell(end)
	if !ok {
		return A1Range{}, fmt.Errorf("bad A1 range %q", rng)
	}
	if c1 >= 0 {
		r.Col1 = c1
	}
	if r1 >= 0 {
		r.Row1 = r1
	}
	return r, nil
}

// splitCell returns zero-based column and row, each -1 when absent.
func splitCell(s string) (int, int, bool) {
	m := cellPattern.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, 0, false
	}
	col, row := -1, -1
	if m[1] != "" {
		col = colIndex(m[1])
	}
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1 {
			return 0, 0, false
		}
		row = n - 1
	}
	return col, row, true
}

func colIndex(s string) int {
	n := 0
	for _, c := range s {
		n = n*26 + int(c-'A'+1)
	}
	return n - 1
}

// MemoryKV is a map-backed key/value store.
type MemoryKV struct {
	mu     sync.Mutex
	Values map[string]string
	Errors ErrorQueue
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{Values: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Errors.Next("get"); err != nil {
		return "", false, err
	}
	v, ok := m.Values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Errors.Next("set"); err != nil {
		return err
	}
	m.Values[key] = value
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Errors.Next("delete"); err != nil {
		return err
	}
	delete(m.Values, key)
	return nil
}

// FakeProvider is a scripted authorization provider.
//
// Each successful Authorize or Refresh issues a new access token (token-1, token-2, ...) valid for Lifetime.
type FakeProvider struct {
	mu       sync.Mutex
	Errors   ErrorQueue
	Lifetime time.Duration
	Now      func() time.Time
	Calls    map[string]int
	Revoked  []string
	issued   int
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{Lifetime: time.Hour, Now: time.Now, Calls: make(map[string]int)}
}

// CallCount returns how many times op (authorize, refresh, revoke) was invoked.
func (p *FakeProvider) CallCount(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls[op]
}

func (p *FakeProvider) issue() *models.Credential {
	p.issued++
	return &models.Credential{
		AccessToken:  fmt.Sprintf("token-%d", p.issued),
		RefreshToken: "refresh",
		Expiry:       p.Now().Add(p.Lifetime),
	}
}

func (p *FakeProvider) Authorize(context.Context) (*models.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls["authorize"]++
	if err := p.Errors.Next("authorize"); err != nil {
		return nil, err
	}
	return p.issue(), nil
}

func (p *FakeProvider) Refresh(_ context.Context, _ *models.Credential) (*models.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls["refresh"]++
	if err := p.Errors.Next("refresh"); err != nil {
		return nil, err
	}
	return p.issue(), nil
}

func (p *FakeProvider) Revoke(_ context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls["revoke"]++
	if err := p.Errors.Next("revoke"); err != nil {
		return err
	}
	p.Revoked = append(p.Revoked, token)
	return nil
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
