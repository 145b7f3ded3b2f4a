package umongo

import (
	"context"
	"testing"
)

type menagerie struct {
	Parent     *DocumentType
	Child1     *DocumentType
	GrandChild *DocumentType
	Child2     *DocumentType
}

func newMenagerie(t *testing.T, inst *Instance) menagerie {
	t.Helper()
	parent, err := inst.Register(Def{
		Name:             "InhParent",
		Collection:       "inheritance",
		AllowInheritance: true,
		Fields:           []*Field{IntField("last_grade")},
	})
	if err != nil {
		t.Fatalf("register parent: %v", err)
	}
	child1, err := inst.Register(Def{
		Name:             "InhChild1",
		Inherit:          parent,
		AllowInheritance: true,
		Fields:           []*Field{StrField("extra")},
	})
	if err != nil {
		t.Fatalf("register child1: %v", err)
	}
	grandChild, err := inst.Register(Def{
		Name:    "InhGrandChild",
		Inherit: child1,
	})
	if err != nil {
		t.Fatalf("register grandchild: %v", err)
	}
	child2, err := inst.Register(Def{
		Name:    "InhChild2",
		Inherit: parent,
	})
	if err != nil {
		t.Fatalf("register child2: %v", err)
	}
	return menagerie{Parent: parent, Child1: child1, GrandChild: grandChild, Child2: child2}
}

func TestRegisterGuards(t *testing.T) {
	inst := newTestInstance(t)

	sealed, err := inst.Register(Def{Name: "Sealed", Fields: []*Field{StrField("name")}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := inst.Register(Def{Name: "Breaker", Inherit: sealed}); err == nil {
		t.Fatal("inheriting a sealed type succeeded")
	}

	if _, err := inst.Register(Def{Name: "Sealed"}); err == nil {
		t.Fatal("duplicate registration succeeded")
	}

	open, err := inst.Register(Def{Name: "Open", AllowInheritance: true,
		Fields: []*Field{IntField("grade")}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := inst.Register(Def{
		Name: "Elsewhere", Inherit: open, Collection: "other_place",
	}); err == nil {
		t.Fatal("child overrode the root collection")
	}
	if _, err := inst.Register(Def{
		Name: "Clash", Inherit: open,
		Fields: []*Field{StrField("grade")},
	}); err == nil {
		t.Fatal("redeclaring a field with another kind succeeded")
	}

	// Same-kind redeclaration refines the ancestor's descriptor.
	refined, err := inst.Register(Def{
		Name: "Refined", Inherit: open,
		Fields: []*Field{IntField("grade", Required())},
	})
	if err != nil {
		t.Fatalf("same-kind redeclaration: %v", err)
	}
	ve := asValidation(t, mustNew(t, refined, Values{}).IOValidate(context.Background()))
	wantMessages(t, ve.Fields, "grade", "Missing data for required field.")

	other := newTestInstance(t)
	if _, err := other.Register(Def{Name: "Foreign", Inherit: open}); err == nil {
		t.Fatal("inheriting across instances succeeded")
	}
}

func TestPolymorphicFind(t *testing.T) {
	inst := newTestInstance(t)
	m := newMenagerie(t, inst)
	ctx := context.Background()

	for _, dt := range []*DocumentType{m.Parent, m.Child1, m.GrandChild, m.Child2} {
		if dt.Collection() != "inheritance" {
			t.Fatalf("%s bound to collection %q, want inheritance", dt.Name(), dt.Collection())
		}
		mustCommit(t, mustNew(t, dt, Values{"last_grade": 1}))
	}

	counts := []struct {
		dt   *DocumentType
		want int64
	}{
		{m.Parent, 4},
		{m.Child1, 2},
		{m.GrandChild, 1},
		{m.Child2, 1},
	}
	for _, c := range counts {
		n, err := c.dt.Count(ctx, nil)
		if err != nil {
			t.Fatalf("Count %s: %v", c.dt.Name(), err)
		}
		if n != c.want {
			t.Fatalf("Count %s = %d, want %d", c.dt.Name(), n, c.want)
		}
		docs, err := c.dt.Find(ctx, nil)
		if err != nil {
			t.Fatalf("Find %s: %v", c.dt.Name(), err)
		}
		if int64(len(docs)) != c.want {
			t.Fatalf("Find %s returned %d docs, want %d", c.dt.Name(), len(docs), c.want)
		}
	}
}

func TestHydrationSelectsConcreteType(t *testing.T) {
	inst := newTestInstance(t)
	m := newMenagerie(t, inst)
	ctx := context.Background()

	gc := mustNew(t, m.GrandChild, Values{"last_grade": 3, "extra": "x"})
	mustCommit(t, gc)

	found, err := m.Parent.FindOne(ctx, gc.ID())
	if err != nil || found == nil {
		t.Fatalf("FindOne through root: %v, %v", found, err)
	}
	if found.Type() != m.GrandChild {
		t.Fatalf("hydrated as %s, want InhGrandChild", found.Type().Name())
	}
	if got := found.Get("extra"); got != "x" {
		t.Fatalf("extra = %v, want x", got)
	}
}

func TestDiscriminatorStoredOnlyForSubtypes(t *testing.T) {
	inst := newTestInstance(t)
	m := newMenagerie(t, inst)

	root := mustNew(t, m.Parent, Values{"last_grade": 1})
	if _, ok := root.Payload()[clsAttribute]; ok {
		t.Fatal("root payload carries a discriminator")
	}

	child := mustNew(t, m.Child1, Values{"last_grade": 1})
	if got := child.Payload()[clsAttribute]; got != "InhChild1" {
		t.Fatalf("child discriminator = %v, want InhChild1", got)
	}
}

func TestSubtypeReferenceAccepted(t *testing.T) {
	inst := newTestInstance(t)
	m := newMenagerie(t, inst)
	holder, err := inst.Register(Def{
		Name:   "InhHolder",
		Fields: []*Field{RefField("pet", m.Parent)},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := context.Background()

	gc := mustNew(t, m.GrandChild, Values{"last_grade": 1})
	mustCommit(t, gc)

	h := mustNew(t, holder, Values{"pet": gc})
	if err := h.Commit(ctx); err != nil {
		t.Fatalf("Commit with subtype reference: %v", err)
	}
	ref, ok := h.Get("pet").(*Reference)
	if !ok {
		t.Fatalf("pet = %T, want *Reference", h.Get("pet"))
	}
	fetched, err := ref.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if fetched.Type() != m.GrandChild {
		t.Fatalf("fetched type %s, want InhGrandChild", fetched.Type().Name())
	}
}
