package domain

import "testing"

func TestCanTransitionHappyPath(t *testing.T) {
	path := []TaskStatus{
		TaskStatusPending,
		TaskStatusAssigned,
		TaskStatusPaid,
		TaskStatusProcessing,
		TaskStatusCompleted,
		TaskStatusReviewed,
	}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s to be legal", path[i], path[i+1])
		}
	}
}

func TestCanTransitionRejectsSkips(t *testing.T) {
	illegal := []struct {
		from, to TaskStatus
	}{
		{TaskStatusPending, TaskStatusPaid},
		{TaskStatusPending, TaskStatusProcessing},
		{TaskStatusAssigned, TaskStatusProcessing},
		{TaskStatusAssigned, TaskStatusCompleted},
		{TaskStatusPaid, TaskStatusCompleted},
		{TaskStatusFailed, TaskStatusCompleted},
		{TaskStatusReviewed, TaskStatusCompleted},
		{TaskStatusCompleted, TaskStatusProcessing},
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestCanTransitionReassignment(t *testing.T) {
	if !CanTransition(TaskStatusAssigned, TaskStatusAssigned) {
		t.Fatal("re-assignment of an assigned task should be legal")
	}
	if CanTransition(TaskStatusProcessing, TaskStatusAssigned) {
		t.Fatal("re-assignment of a processing task should be illegal")
	}
}

func TestFailedIsTerminalForCompletion(t *testing.T) {
	if CanTransition(TaskStatusFailed, TaskStatusCompleted) {
		t.Fatal("completing a failed task must be rejected")
	}
	if CanTransition(TaskStatusFailed, TaskStatusProcessing) {
		t.Fatal("failed tasks are not re-dispatched automatically")
	}
}
