package task

import (
	"sync"
	"testing"
)

func TestNewTaskStatus(t *testing.T) {
	unassigned := New("write docs", "")
	if got := unassigned.Status(); got != StatusPending {
		t.Errorf("status = %s, want pending", got)
	}

	assigned := New("write docs", "casey")
	if got := assigned.Status(); got != StatusAssigned {
		t.Errorf("status = %s, want assigned", got)
	}
	if got := assigned.Assignee(); got != "casey" {
		t.Errorf("assignee = %q", got)
	}
}

func TestTerminalIsMonotonic(t *testing.T) {
	tk := New("research competitors", "riley")
	if tk.IsTerminal() {
		t.Fatal("fresh task is terminal")
	}

	tk.Start()
	if tk.IsTerminal() {
		t.Fatal("in_progress task is terminal")
	}

	tk.Complete("the findings")
	if !tk.IsTerminal() {
		t.Fatal("completed task not terminal")
	}

	// Terminal result is immutable; later transitions are no-ops.
	tk.Fail("should not apply")
	if got := tk.Status(); got != StatusDone {
		t.Errorf("status after late Fail = %s, want done", got)
	}
	if got := tk.Result(); got != "the findings" {
		t.Errorf("result mutated after terminal: %q", got)
	}

	tk.Complete("also should not apply")
	if got := tk.Result(); got != "the findings" {
		t.Errorf("result mutated by second Complete: %q", got)
	}
}

func TestFailSetsReason(t *testing.T) {
	tk := New("impossible", "sam")
	tk.Start()
	tk.Fail("exceeded maximum iterations (15) without producing a deliverable")
	if got := tk.Status(); got != StatusFailed {
		t.Errorf("status = %s, want failed", got)
	}
	if tk.Result() == "" {
		t.Error("failure reason empty")
	}
}

func TestAddSubtaskLinksParent(t *testing.T) {
	parent := New("launch product", "alex")
	sub := parent.AddSubtask("write landing page copy")

	if sub.ParentID != parent.ID {
		t.Errorf("subtask parent = %q, want %q", sub.ParentID, parent.ID)
	}
	if got := sub.Status(); got != StatusPending {
		t.Errorf("subtask status = %s, want pending", got)
	}
	if subs := parent.Subtasks(); len(subs) != 1 || subs[0].ID != sub.ID {
		t.Errorf("parent subtasks = %v", subs)
	}
}

func TestSnapshotCountsSubtasks(t *testing.T) {
	parent := New("big effort", "alex")
	s1 := parent.AddSubtask("part one")
	parent.AddSubtask("part two")
	s1.Complete("done part one")

	v := parent.Snapshot()
	if v.SubtaskCount != 2 || v.SubtasksDone != 1 {
		t.Errorf("subtask counts = %d/%d, want 1/2 done", v.SubtasksDone, v.SubtaskCount)
	}
}

func TestBoardIndexAndFilters(t *testing.T) {
	b := NewBoard()
	t1 := New("first", "alex")
	t2 := New("second", "")
	t3 := New("third", "alex")
	b.Add(t1)
	b.Add(t2)
	b.Add(t3)
	b.Add(t1) // duplicate add is a no-op

	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}
	if got := b.Get(t2.ID); got != t2 {
		t.Errorf("Get() returned wrong task")
	}
	if got := b.Get("nope"); got != nil {
		t.Errorf("Get(unknown) = %v, want nil", got)
	}

	if got := b.ListByAssignee("alex"); len(got) != 2 {
		t.Errorf("ListByAssignee = %d tasks, want 2", len(got))
	}
	if got := b.ListByStatus(StatusPending); len(got) != 1 || got[0] != t2 {
		t.Errorf("ListByStatus(pending) = %v", got)
	}

	t1.Start()
	t1.Complete("ok")
	sum := b.Summary()
	if sum[StatusDone] != 1 || sum[StatusAssigned] != 1 || sum[StatusPending] != 1 {
		t.Errorf("Summary() = %v", sum)
	}
}

func TestBoardListAllNewestFirst(t *testing.T) {
	b := NewBoard()
	t1 := New("oldest", "")
	t2 := New("newest", "")
	b.Add(t1)
	b.Add(t2)

	all := b.ListAll()
	if len(all) != 2 {
		t.Fatalf("ListAll() = %d tasks", len(all))
	}
	if all[0].ID != t2.ID {
		t.Errorf("ListAll()[0] = %s, want newest task %s", all[0].ID, t2.ID)
	}
}

func TestConcurrentBoardAccess(t *testing.T) {
	b := NewBoard()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk := New("concurrent", "worker")
			b.Add(tk)
			tk.Start()
			tk.Complete("ok")
			b.Summary()
			b.ListAll()
		}()
	}
	wg.Wait()

	if b.Len() != 50 {
		t.Errorf("Len() = %d, want 50", b.Len())
	}
	if got := b.Summary()[StatusDone]; got != 50 {
		t.Errorf("done count = %d, want 50", got)
	}
}
