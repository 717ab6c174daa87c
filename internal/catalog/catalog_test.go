package catalog

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/catalogsync/internal/delta"
	"github.com/danmuck/catalogsync/internal/descriptor"
	"github.com/danmuck/catalogsync/internal/testutil/testlog"
)

type recordingTracker struct {
	added   []int
	changed []int
	cleared []string
}

func (r *recordingTracker) Added(_ *List, index int)   { r.added = append(r.added, index) }
func (r *recordingTracker) Changed(_ *List, index int) { r.changed = append(r.changed, index) }
func (r *recordingTracker) Cleared(l *List)            { r.cleared = append(r.cleared, l.Name()) }

func sizeSchema(t *testing.T) *delta.Schema {
	t.Helper()
	f, err := delta.NewField("size", delta.KindUint32)
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	s, err := delta.NewSchema("model.meta", f)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return s
}

func newManager(t *testing.T) (*Manager, *recordingTracker, *delta.Schema) {
	t.Helper()
	set := descriptor.NewSet("producer")
	schema := sizeSchema(t)
	if err := set.Register(1, schema); err != nil {
		t.Fatalf("register: %v", err)
	}
	tr := &recordingTracker{}
	return NewManager(set, tr), tr, schema
}

func TestCreateListAssignsSequentialHandles(t *testing.T) {
	testlog.Start(t)
	m, _, _ := newManager(t)
	for i, name := range []string{"models", "sounds", "precache"} {
		l, err := m.CreateList(name)
		if err != nil {
			t.Fatalf("create %q: %v", name, err)
		}
		if l.Handle() != i {
			t.Fatalf("list %q handle=%d want %d", name, l.Handle(), i)
		}
	}
	if _, err := m.CreateList("sounds"); !errors.Is(err, ErrListExists) {
		t.Fatalf("expected ErrListExists, got %v", err)
	}
	if _, err := m.CreateList("   "); !errors.Is(err, ErrBlankName) {
		t.Fatalf("expected ErrBlankName, got %v", err)
	}
	l, ok := m.ListByHandle(2)
	if !ok || l.Name() != "precache" {
		t.Fatalf("lookup by handle failed: %v %v", l, ok)
	}
	if _, ok := m.ListByHandle(3); ok {
		t.Fatalf("expected handle 3 to be missing")
	}
	if _, ok := m.List("Sounds"); ok {
		t.Fatalf("names must match exactly")
	}
}

func TestAddIsIdempotent(t *testing.T) {
	testlog.Start(t)
	m, tr, _ := newManager(t)
	l, _ := m.CreateList("precache")

	first, err := l.Add("models/x.mdl", nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := l.Add("models/x.mdl", nil)
	if err != nil {
		t.Fatalf("add again: %v", err)
	}
	if first != second || l.Len() != 1 {
		t.Fatalf("duplicate add: first=%d second=%d len=%d", first, second, l.Len())
	}
	if !reflect.DeepEqual(tr.added, []int{0}) {
		t.Fatalf("expected one added mark, got %v", tr.added)
	}
	if _, err := l.Add("", nil); !errors.Is(err, ErrBlankValue) {
		t.Fatalf("expected ErrBlankValue, got %v", err)
	}
}

func TestAddPreservesInsertionOrder(t *testing.T) {
	testlog.Start(t)
	m, _, _ := newManager(t)
	l, _ := m.CreateList("sounds")
	for _, v := range []string{"c.wav", "a.wav", "b.wav"} {
		if _, err := l.Add(v, nil); err != nil {
			t.Fatalf("add %q: %v", v, err)
		}
	}
	if got := l.Values(); !reflect.DeepEqual(got, []string{"c.wav", "a.wav", "b.wav"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	for i, e := range l.Entries() {
		if e.Index() != i {
			t.Fatalf("entry %q index=%d want %d", e.Value(), e.Index(), i)
		}
	}
	e, ok := l.Find("b.wav")
	if !ok || e.Index() != 2 {
		t.Fatalf("find: %v %v", e, ok)
	}
}

func TestSetPayloadMarksChanged(t *testing.T) {
	testlog.Start(t)
	m, tr, schema := newManager(t)
	l, _ := m.CreateList("models")
	idx, _ := l.Add("models/x.mdl", nil)

	msg, err := schema.Build(map[string]delta.Value{"size": delta.UintValue(delta.KindUint32, 4096)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := l.SetPayload(idx, msg); err != nil {
		t.Fatalf("set payload: %v", err)
	}
	if !reflect.DeepEqual(tr.changed, []int{idx}) {
		t.Fatalf("expected changed mark, got %v", tr.changed)
	}
	e, _ := l.Entry(idx)
	if e.Payload() != msg {
		t.Fatalf("payload not stored")
	}
	if err := l.SetPayload(5, msg); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestUnregisteredPayloadFailsFast(t *testing.T) {
	testlog.Start(t)
	m, tr, _ := newManager(t)
	l, _ := m.CreateList("models")
	stranger, _ := sizeSchema(t).Build(nil)

	if _, err := l.Add("models/y.mdl", stranger); !errors.Is(err, descriptor.ErrUnregistered) {
		t.Fatalf("expected ErrUnregistered on add, got %v", err)
	}
	if l.Len() != 0 || len(tr.added) != 0 {
		t.Fatalf("failed add must not append or mark")
	}
	idx, _ := l.Add("models/y.mdl", nil)
	if err := l.SetPayload(idx, stranger); !errors.Is(err, descriptor.ErrUnregistered) {
		t.Fatalf("expected ErrUnregistered on set, got %v", err)
	}
	if len(tr.changed) != 0 {
		t.Fatalf("failed set must not mark changed")
	}
}

func TestUserDataIsLocal(t *testing.T) {
	testlog.Start(t)
	m, tr, _ := newManager(t)
	l, _ := m.CreateList("models")
	idx, _ := l.Add("models/x.mdl", nil)
	if err := l.SetUserData(idx, "handle:42"); err != nil {
		t.Fatalf("set user data: %v", err)
	}
	got, err := l.UserData(idx)
	if err != nil || got != "handle:42" {
		t.Fatalf("user data: %v %v", got, err)
	}
	if len(tr.changed) != 0 {
		t.Fatalf("user data must not mark changed")
	}
	if _, err := l.UserData(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestClearKeepsLists(t *testing.T) {
	testlog.Start(t)
	m, tr, _ := newManager(t)
	a, _ := m.CreateList("a")
	b, _ := m.CreateList("b")
	_, _ = a.Add("x", nil)
	_, _ = b.Add("y", nil)

	m.Clear()
	if a.Len() != 0 || b.Len() != 0 {
		t.Fatalf("lists not emptied")
	}
	if m.Len() != 2 {
		t.Fatalf("lists must survive clear")
	}
	if !reflect.DeepEqual(tr.cleared, []string{"a", "b"}) {
		t.Fatalf("unexpected cleared marks: %v", tr.cleared)
	}
	idx, _ := a.Add("z", nil)
	if idx != 0 {
		t.Fatalf("indices restart after clear, got %d", idx)
	}
}
