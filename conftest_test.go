package umongo

import (
	"context"
	"errors"
	"testing"
)

// newTestInstance builds an instance backed by the in-process store.
func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	inst, err := New(WithMemoryStore())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := inst.Close(context.Background()); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return inst
}

// classroom is the shared fixture model: teachers, the courses they give and
// the students enrolled in them.
type classroom struct {
	Teacher *DocumentType
	Course  *DocumentType
	Student *DocumentType
}

func newClassroom(t *testing.T, inst *Instance) classroom {
	t.Helper()

	teacher, err := inst.Register(Def{
		Name: "Teacher",
		Fields: []*Field{
			StrField("name", Required()),
		},
	})
	if err != nil {
		t.Fatalf("register Teacher: %v", err)
	}

	course, err := inst.Register(Def{
		Name: "Course",
		Fields: []*Field{
			StrField("name", Required()),
			RefField("teacher", teacher),
		},
	})
	if err != nil {
		t.Fatalf("register Course: %v", err)
	}

	student, err := inst.Register(Def{
		Name: "Student",
		Fields: []*Field{
			StrField("name", Required()),
			DateTimeField("birthday"),
			ListField("courses", ElemRef(course)),
		},
	})
	if err != nil {
		t.Fatalf("register Student: %v", err)
	}

	return classroom{Teacher: teacher, Course: course, Student: student}
}

func mustNew(t *testing.T, dt *DocumentType, vals Values) *Doc {
	t.Helper()
	d, err := dt.New(vals)
	if err != nil {
		t.Fatalf("New %s: %v", dt.Name(), err)
	}
	return d
}

func mustCommit(t *testing.T, d *Doc) {
	t.Helper()
	if err := d.Commit(context.Background()); err != nil {
		t.Fatalf("Commit %s: %v", d.Type().Name(), err)
	}
}

// asValidation unwraps err into a *ValidationError or fails the test.
func asValidation(t *testing.T, err error) *ValidationError {
	t.Helper()
	if err == nil {
		t.Fatal("expected a validation error, got nil")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return ve
}

func wantMessages(t *testing.T, fe FieldErrors, field string, want ...string) {
	t.Helper()
	got := fe.Messages(field)
	if len(got) != len(want) {
		t.Fatalf("field %q: got messages %v, want %v", field, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("field %q message %d: got %q, want %q", field, i, got[i], want[i])
		}
	}
}
