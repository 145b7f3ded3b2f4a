package db

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestIndexKeyName(t *testing.T) {
	cases := []struct {
		keys bson.D
		want string
	}{
		{bson.D{{Key: "field", Value: 1}}, "field_1"},
		{bson.D{{Key: "a", Value: 1}, {Key: "b", Value: -1}}, "a_1_b_-1"},
		{bson.D{{Key: "a", Value: 1}, {Key: "_cls", Value: 1}}, "a_1__cls_1"},
	}
	for _, c := range cases {
		m := IndexModel{Keys: c.keys}
		if got := m.KeyName(); got != c.want {
			t.Errorf("KeyName(%v) = %q, want %q", c.keys, got, c.want)
		}
	}
}

func TestIndexEqual(t *testing.T) {
	a := IndexModel{Keys: bson.D{{Key: "x", Value: 1}}, Unique: true}
	b := IndexModel{Keys: bson.D{{Key: "x", Value: 1}}, Unique: true}
	if !a.Equal(b) {
		t.Fatal("identical models not equal")
	}
	b.Unique = false
	if a.Equal(b) {
		t.Fatal("models with different flags equal")
	}
	c := IndexModel{Keys: bson.D{{Key: "y", Value: 1}}, Unique: true}
	if a.Equal(c) {
		t.Fatal("models with different keys equal")
	}
}

func TestIndexValidate(t *testing.T) {
	if err := (IndexModel{}).Validate(); err == nil {
		t.Fatal("empty model validated")
	}
	if err := (IndexModel{Keys: bson.D{{Key: "", Value: 1}}}).Validate(); err == nil {
		t.Fatal("empty key name validated")
	}
	dup := IndexModel{Keys: bson.D{{Key: "x", Value: 1}, {Key: "x", Value: -1}}}
	if err := dup.Validate(); err == nil {
		t.Fatal("duplicate key validated")
	}
	ok := IndexModel{Keys: bson.D{{Key: "x", Value: 1}, {Key: "y", Value: 1}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid model rejected: %v", err)
	}
}
