package tasks

import (
	"testing"

	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(models.TaskDefinition{ID: "t1", Name: "First"})

	def, ok := r.Get("t1")
	if !ok {
		t.Fatal("expected task to be found")
	}
	if def.Name != "First" {
		t.Errorf("expected name 'First', got %q", def.Name)
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("expected missing task to not be found")
	}
}

func TestRegistry_List_SortedByID(t *testing.T) {
	r := NewRegistry()
	r.Register(models.TaskDefinition{ID: "b", Name: "B"})
	r.Register(models.TaskDefinition{ID: "a", Name: "A"})

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(list))
	}
	if list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("expected sorted order [a, b], got [%s, %s]", list[0].ID, list[1].ID)
	}
}

func TestRegistry_Create_AssignsIDAndTimestamp(t *testing.T) {
	r := NewRegistry()
	def, err := r.Create(models.TaskDefinition{Name: "Daily report", Instructions: "Summarize yesterday"}, func() string { return "generated-id" })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.ID != "generated-id" {
		t.Errorf("expected generated ID, got %q", def.ID)
	}
	if def.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	stored, ok := r.Get("generated-id")
	if !ok || stored.Name != "Daily report" {
		t.Error("expected task to be registered")
	}
}

func TestRegistry_Create_RequiresNameAndInstructions(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create(models.TaskDefinition{Instructions: "do it"}, func() string { return "x" }); err == nil {
		t.Error("expected error for missing name")
	}
	if _, err := r.Create(models.TaskDefinition{Name: "x"}, func() string { return "x" }); err == nil {
		t.Error("expected error for missing instructions")
	}
}

func TestRegistry_Create_PreservesExplicitID(t *testing.T) {
	r := NewRegistry()
	def, err := r.Create(models.TaskDefinition{ID: "fixed-id", Name: "x", Instructions: "y"}, func() string { return "never-used" })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.ID != "fixed-id" {
		t.Errorf("expected explicit ID to be preserved, got %q", def.ID)
	}
}
