package umongo

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRequiredField(t *testing.T) {
	inst := newTestInstance(t)
	cls := newClassroom(t, inst)
	ctx := context.Background()

	john := mustNew(t, cls.Student, Values{})
	ve := asValidation(t, john.Commit(ctx))
	wantMessages(t, ve.Fields, "name", "Missing data for required field.")

	// IOValidate reports the exact same failure without touching the store.
	ve = asValidation(t, john.IOValidate(ctx))
	wantMessages(t, ve.Fields, "name", "Missing data for required field.")
	if john.IsCreated() {
		t.Fatal("failed commit flipped the created flag")
	}
}

func TestSyncValidatorsAccumulate(t *testing.T) {
	inst := newTestInstance(t)
	tooLong := func(v any) error {
		if s, _ := v.(string); len(s) > 5 {
			return errors.New("Longer than maximum length 5.")
		}
		return nil
	}
	noDigits := func(v any) error {
		if s, _ := v.(string); s != "" && s[len(s)-1] >= '0' && s[len(s)-1] <= '9' {
			return errors.New("Must not end with a digit.")
		}
		return nil
	}
	dt, err := inst.Register(Def{
		Name: "Form",
		Fields: []*Field{
			StrField("nick", Validate(tooLong, noDigits)),
			StrField("code", Required()),
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	d := mustNew(t, dt, Values{"nick": "toolong7"})
	ve := asValidation(t, d.Commit(context.Background()))
	wantMessages(t, ve.Fields, "nick",
		"Longer than maximum length 5.", "Must not end with a digit.")
	wantMessages(t, ve.Fields, "code", "Missing data for required field.")
}

func TestIOValidatorReceivesBoundField(t *testing.T) {
	inst := newTestInstance(t)
	var gotField string
	var gotValue any
	check := func(_ context.Context, f *Field, v any) error {
		gotField = f.Name()
		gotValue = v
		return nil
	}
	dt, err := inst.Register(Def{
		Name:   "Probe",
		Fields: []*Field{IntField("io_field", IOValidate(check))},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	d := mustNew(t, dt, Values{"io_field": 9})
	if err := d.IOValidate(context.Background()); err != nil {
		t.Fatalf("IOValidate: %v", err)
	}
	if gotField != "io_field" {
		t.Fatalf("validator bound to field %q, want io_field", gotField)
	}
	if gotValue != int64(9) {
		t.Fatalf("validator value = %v, want 9", gotValue)
	}
}

// Chains of different fields run concurrently while validators inside one
// field stay sequential: channel handshakes force a single observable order.
func TestIOValidateChoreography(t *testing.T) {
	inst := newTestInstance(t)
	var called []int
	s1 := make(chan struct{})
	s2 := make(chan struct{})
	s3 := make(chan struct{})
	s4 := make(chan struct{})

	step := func(n int, wait, signal chan struct{}) IOValidator {
		return func(context.Context, *Field, any) error {
			if wait != nil {
				<-wait
			}
			called = append(called, n)
			if signal != nil {
				close(signal)
			}
			return nil
		}
	}

	dt, err := inst.Register(Def{
		Name: "Choir",
		Fields: []*Field{
			IntField("a", IOValidate(step(1, nil, s1), step(3, s2, s3))),
			IntField("b", IOValidate(step(2, s1, s2), step(4, s3, s4))),
			IntField("c", IOValidate(step(5, s4, nil))),
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	d := mustNew(t, dt, Values{"a": 1, "b": 2, "c": 3})
	if err := d.IOValidate(context.Background()); err != nil {
		t.Fatalf("IOValidate: %v", err)
	}
	want := []int{1, 2, 3, 4, 5}
	if len(called) != len(want) {
		t.Fatalf("called = %v, want %v", called, want)
	}
	for i := range want {
		if called[i] != want[i] {
			t.Fatalf("called = %v, want %v", called, want)
		}
	}
}

func TestIOValidatorErrorRecorded(t *testing.T) {
	inst := newTestInstance(t)
	reject := func(context.Context, *Field, any) error {
		return NewValidationError("Ho boys!")
	}
	var secondCalled bool
	second := func(context.Context, *Field, any) error {
		secondCalled = true
		return nil
	}
	dt, err := inst.Register(Def{
		Name:   "Rejecting",
		Fields: []*Field{IntField("io_field", IOValidate(reject, second))},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	d := mustNew(t, dt, Values{"io_field": 1})
	ve := asValidation(t, d.IOValidate(context.Background()))
	wantMessages(t, ve.Fields, "io_field", "Ho boys!")
	if secondCalled {
		t.Fatal("chain continued past a failing validator")
	}
}

func TestIOValidatorHardErrorAborts(t *testing.T) {
	inst := newTestInstance(t)
	boom := errors.New("connection lost")
	dt, err := inst.Register(Def{
		Name: "Fragile",
		Fields: []*Field{
			IntField("io_field", IOValidate(func(context.Context, *Field, any) error {
				return boom
			})),
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	d := mustNew(t, dt, Values{"io_field": 1})
	err = d.Commit(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Commit: got %v, want the validator's error", err)
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		t.Fatal("infrastructure error was wrapped as a validation error")
	}
}

func TestStructuralFailureSkipsIOValidation(t *testing.T) {
	inst := newTestInstance(t)
	var ioCalled bool
	dt, err := inst.Register(Def{
		Name: "Gated",
		Fields: []*Field{
			StrField("name", Required()),
			IntField("io_field", IOValidate(func(context.Context, *Field, any) error {
				ioCalled = true
				return nil
			})),
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	d := mustNew(t, dt, Values{"io_field": 1})
	asValidation(t, d.IOValidate(context.Background()))
	if ioCalled {
		t.Fatal("async validator ran despite a structural failure")
	}
}

func TestListElementValidation(t *testing.T) {
	inst := newTestInstance(t)
	maxTen := func(v any) error {
		if n, _ := v.(int64); n > 10 {
			return fmt.Errorf("%d is over the limit.", n)
		}
		return nil
	}
	dt, err := inst.Register(Def{
		Name:   "Scores",
		Fields: []*Field{ListField("points", Elem(KindInt, Validate(maxTen)))},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	d := mustNew(t, dt, Values{"points": []int{3, 12, 7, 40}})
	ve := asValidation(t, d.Commit(context.Background()))
	wantMessages(t, ve.Fields, "points",
		"12 is over the limit.", "40 is over the limit.")
}

func TestEmbeddedValidation(t *testing.T) {
	inst := newTestInstance(t)
	address, err := inst.RegisterEmbedded(EmbeddedDef{
		Name: "Address",
		Fields: []*Field{
			StrField("street", Required()),
			StrField("city", Required()),
		},
	})
	if err != nil {
		t.Fatalf("RegisterEmbedded: %v", err)
	}
	dt, err := inst.Register(Def{
		Name: "Resident",
		Fields: []*Field{
			StrField("name", Required()),
			EmbeddedField("address", address),
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	d := mustNew(t, dt, Values{
		"name":    "John Doe",
		"address": Values{"street": "12 rue des moulins"},
	})
	ve := asValidation(t, d.Commit(context.Background()))
	nested := ve.Fields.Nested("address")
	if nested == nil {
		t.Fatalf("no nested errors for address: %v", ve.Fields)
	}
	wantMessages(t, nested, "city", "Missing data for required field.")
}

func TestUpdateValidatesOnlyDirtyFields(t *testing.T) {
	inst := newTestInstance(t)
	var calls int
	dt, err := inst.Register(Def{
		Name: "Partial",
		Fields: []*Field{
			StrField("name"),
			IntField("checked", IOValidate(func(context.Context, *Field, any) error {
				calls++
				return nil
			})),
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	d := mustNew(t, dt, Values{"name": "a", "checked": 1})
	mustCommit(t, d)
	if calls != 1 {
		t.Fatalf("insert ran the validator %d times, want 1", calls)
	}

	if err := d.Set("name", "b"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mustCommit(t, d)
	if calls != 1 {
		t.Fatalf("update of an unrelated field re-ran the validator (%d calls)", calls)
	}
}
