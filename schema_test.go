package umongo

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUnknownField(t *testing.T) {
	inst := newTestInstance(t)
	cls := newClassroom(t, inst)

	if _, err := cls.Student.New(Values{"nickname": "Jo"}); err == nil {
		t.Fatal("New with an unknown field succeeded")
	}
	john := mustNew(t, cls.Student, Values{"name": "John Doe"})
	if err := john.Set("nickname", "Jo"); err == nil {
		t.Fatal("Set of an unknown field succeeded")
	}
}

func TestRegisterRejectsAttributeClash(t *testing.T) {
	inst := newTestInstance(t)
	_, err := inst.Register(Def{
		Name: "Clashing",
		Fields: []*Field{
			StrField("first", Attribute("x")),
			StrField("second", Attribute("x")),
		},
	})
	if err == nil {
		t.Fatal("two fields sharing an attribute were accepted")
	}
}

func TestRegisterRejectsReservedAttribute(t *testing.T) {
	inst := newTestInstance(t)
	_, err := inst.Register(Def{
		Name:   "Reserved",
		Fields: []*Field{StrField("cls", Attribute("_cls"))},
	})
	if err == nil || !strings.Contains(err.Error(), "reserved") {
		t.Fatalf("reserved attribute accepted: %v", err)
	}
}

func TestRegisterRejectsIndexOnUnknownField(t *testing.T) {
	inst := newTestInstance(t)
	_, err := inst.Register(Def{
		Name:    "BadIndex",
		Fields:  []*Field{StrField("name")},
		Indexes: []Index{{Keys: []string{"name", "ghost"}}},
	})
	if err == nil {
		t.Fatal("index over an unknown field was accepted")
	}
}

func TestScalarCoercion(t *testing.T) {
	inst := newTestInstance(t)
	dt, err := inst.Register(Def{
		Name: "Scalars",
		Fields: []*Field{
			StrField("s"),
			IntField("i"),
			FloatField("f"),
			BoolField("b"),
			ObjectIDField("oid"),
			UUIDField("u"),
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	d := mustNew(t, dt, Values{})

	if err := d.Set("i", 3.0); err != nil {
		t.Fatalf("Set integral float: %v", err)
	}
	if got := d.Get("i"); got != int64(3) {
		t.Fatalf("i = %v (%T), want int64(3)", got, got)
	}
	if err := d.Set("i", 3.5); err == nil {
		t.Fatal("fractional value accepted as integer")
	} else if err.Error() != "Not a valid integer." {
		t.Fatalf("error = %q", err)
	}
	if err := d.Set("s", 42); err == nil || err.Error() != "Not a valid string." {
		t.Fatalf("Set int on string field: %v", err)
	}
	if err := d.Set("f", 2); err != nil {
		t.Fatalf("Set int on float field: %v", err)
	}
	if got := d.Get("f"); got != float64(2) {
		t.Fatalf("f = %v (%T), want float64(2)", got, got)
	}
	if err := d.Set("b", "yes"); err == nil {
		t.Fatal("string accepted as boolean")
	}

	oid := primitive.NewObjectID()
	if err := d.Set("oid", oid.Hex()); err != nil {
		t.Fatalf("Set hex ObjectID: %v", err)
	}
	if got := d.Get("oid"); got != oid {
		t.Fatalf("oid = %v, want %v", got, oid)
	}
	if err := d.Set("oid", "nope"); err == nil || err.Error() != "Not a valid ObjectId." {
		t.Fatalf("Set bad ObjectID: %v", err)
	}

	u := uuid.New()
	if err := d.Set("u", u.String()); err != nil {
		t.Fatalf("Set UUID string: %v", err)
	}
	if got := d.Get("u"); got != u {
		t.Fatalf("u = %v, want %v", got, u)
	}
	if err := d.Set("u", "not-a-uuid"); err == nil || err.Error() != "Not a valid UUID." {
		t.Fatalf("Set bad UUID: %v", err)
	}
	// UUIDs travel in their canonical string form.
	if got := d.Payload()["u"]; got != u.String() {
		t.Fatalf("wire u = %v, want %q", got, u.String())
	}
}

func TestEmbeddedRejectsUnknownField(t *testing.T) {
	inst := newTestInstance(t)
	author, err := inst.RegisterEmbedded(EmbeddedDef{
		Name:   "EAuthor",
		Fields: []*Field{StrField("name")},
	})
	if err != nil {
		t.Fatalf("RegisterEmbedded: %v", err)
	}
	dt, err := inst.Register(Def{
		Name:   "EBook",
		Fields: []*Field{EmbeddedField("author", author)},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	d := mustNew(t, dt, Values{})
	err = d.Set("author", Values{"name": "x", "ghost": 1})
	if err == nil || err.Error() != "Unknown field." {
		t.Fatalf("Set embedded with unknown field: %v", err)
	}
}

func TestCookFilter(t *testing.T) {
	inst := newTestInstance(t)
	book := newLibrary(t, inst)
	s := book.schema

	if got := s.cookPath("author.name"); got != "a.an" {
		t.Fatalf("cookPath(author.name) = %q, want a.an", got)
	}
	if got := s.cookPath("chapters.name"); got != "c.cn" {
		t.Fatalf("cookPath(chapters.name) = %q, want c.cn", got)
	}
	if got := s.cookPath("id"); got != "_id" {
		t.Fatalf("cookPath(id) = %q, want _id", got)
	}
	// Unknown segments pass through so raw attribute queries keep working.
	if got := s.cookPath("t"); got != "t" {
		t.Fatalf("cookPath(t) = %q, want t", got)
	}
}
