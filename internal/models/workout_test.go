package models

import "testing"

func TestWorkoutCRUD(t *testing.T) {
	db := testDB(t)

	var id string
	t.Run("save", func(t *testing.T) {
		w, err := SaveWorkout(db, "profile-1", "Push Day", "Chest and triceps",
			`{"title":"Push Day","blocks":[]}`, `[{"type":"text"}]`, "garmin", `{"fit":"base64"}`, `{"status":"passed"}`)
		if err != nil {
			t.Fatalf("save workout: %v", err)
		}
		if w.ID == "" {
			t.Error("id is empty")
		}
		if w.Title != "Push Day" {
			t.Errorf("title = %q, want Push Day", w.Title)
		}
		if !w.Description.Valid || w.Description.String != "Chest and triceps" {
			t.Errorf("description = %v, want Chest and triceps", w.Description)
		}
		if w.IsExported {
			t.Error("new workout marked exported")
		}
		if w.CreatedAt.IsZero() {
			t.Error("created_at is zero")
		}
		id = w.ID
	})

	t.Run("duplicate title and device", func(t *testing.T) {
		_, err := SaveWorkout(db, "profile-1", "Push Day", "", `{}`, "", "garmin", "", "")
		if err != ErrWorkoutExists {
			t.Errorf("err = %v, want ErrWorkoutExists", err)
		}
	})

	t.Run("same title different device", func(t *testing.T) {
		w, err := SaveWorkout(db, "profile-1", "Push Day", "", `{}`, "", "zwift", "", "")
		if err != nil {
			t.Fatalf("save workout: %v", err)
		}
		if w.Sources != "[]" {
			t.Errorf("sources = %q, want [] default", w.Sources)
		}
		if w.Description.Valid {
			t.Errorf("description = %v, want NULL", w.Description)
		}
	})

	t.Run("get scoped to profile", func(t *testing.T) {
		w, err := GetWorkout(db, id, "profile-1")
		if err != nil {
			t.Fatalf("get workout: %v", err)
		}
		if w.WorkoutData != `{"title":"Push Day","blocks":[]}` {
			t.Errorf("workout data = %q", w.WorkoutData)
		}

		if _, err := GetWorkout(db, id, "profile-2"); err != ErrNotFound {
			t.Errorf("wrong profile err = %v, want ErrNotFound", err)
		}
	})

	t.Run("mark exported", func(t *testing.T) {
		if err := MarkWorkoutExported(db, id, "profile-1", "garmin"); err != nil {
			t.Fatalf("mark exported: %v", err)
		}
		w, _ := GetWorkout(db, id, "profile-1")
		if !w.IsExported {
			t.Error("is_exported still false")
		}
		if !w.ExportedAt.Valid {
			t.Error("exported_at not set")
		}
		if !w.ExportedToDevice.Valid || w.ExportedToDevice.String != "garmin" {
			t.Errorf("exported_to_device = %v, want garmin", w.ExportedToDevice)
		}

		if err := MarkWorkoutExported(db, "no-such-id", "profile-1", "garmin"); err != ErrNotFound {
			t.Errorf("missing id err = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := DeleteWorkout(db, id, "profile-1"); err != nil {
			t.Fatalf("delete workout: %v", err)
		}
		if _, err := GetWorkout(db, id, "profile-1"); err != ErrNotFound {
			t.Errorf("get after delete err = %v, want ErrNotFound", err)
		}
		if err := DeleteWorkout(db, id, "profile-1"); err != ErrNotFound {
			t.Errorf("second delete err = %v, want ErrNotFound", err)
		}
	})
}

func TestListWorkouts(t *testing.T) {
	db := testDB(t)

	first, _ := SaveWorkout(db, "profile-1", "Monday", "", `{}`, "", "garmin", "", "")
	second, _ := SaveWorkout(db, "profile-1", "Tuesday", "", `{}`, "", "zwift", "", "")
	third, _ := SaveWorkout(db, "profile-1", "Wednesday", "", `{}`, "", "garmin", "", "")
	_, _ = SaveWorkout(db, "profile-2", "Monday", "", `{}`, "", "garmin", "", "")

	// Spread creation times so ordering is deterministic.
	_, _ = db.Exec(`UPDATE workouts SET created_at = '2025-01-01 10:00:00' WHERE id = ?`, first.ID)
	_, _ = db.Exec(`UPDATE workouts SET created_at = '2025-01-02 10:00:00' WHERE id = ?`, second.ID)
	_, _ = db.Exec(`UPDATE workouts SET created_at = '2025-01-03 10:00:00' WHERE id = ?`, third.ID)

	t.Run("all for profile", func(t *testing.T) {
		workouts, err := ListWorkouts(db, "profile-1", "", nil, 0)
		if err != nil {
			t.Fatalf("list workouts: %v", err)
		}
		if len(workouts) != 3 {
			t.Fatalf("count = %d, want 3", len(workouts))
		}
		if workouts[0].Title != "Wednesday" || workouts[2].Title != "Monday" {
			t.Errorf("order = %q, %q, %q, want newest first", workouts[0].Title, workouts[1].Title, workouts[2].Title)
		}
	})

	t.Run("device filter", func(t *testing.T) {
		workouts, err := ListWorkouts(db, "profile-1", "garmin", nil, 0)
		if err != nil {
			t.Fatalf("list workouts: %v", err)
		}
		if len(workouts) != 2 {
			t.Fatalf("count = %d, want 2", len(workouts))
		}
		for _, w := range workouts {
			if w.Device != "garmin" {
				t.Errorf("device = %q, want garmin", w.Device)
			}
		}
	})

	t.Run("exported filter", func(t *testing.T) {
		if err := MarkWorkoutExported(db, second.ID, "profile-1", "zwift"); err != nil {
			t.Fatalf("mark exported: %v", err)
		}

		exported := true
		workouts, err := ListWorkouts(db, "profile-1", "", &exported, 0)
		if err != nil {
			t.Fatalf("list workouts: %v", err)
		}
		if len(workouts) != 1 || workouts[0].ID != second.ID {
			t.Fatalf("exported count = %d, want only the marked workout", len(workouts))
		}

		exported = false
		workouts, err = ListWorkouts(db, "profile-1", "", &exported, 0)
		if err != nil {
			t.Fatalf("list workouts: %v", err)
		}
		if len(workouts) != 2 {
			t.Errorf("unexported count = %d, want 2", len(workouts))
		}
	})

	t.Run("limit", func(t *testing.T) {
		workouts, err := ListWorkouts(db, "profile-1", "", nil, 2)
		if err != nil {
			t.Fatalf("list workouts: %v", err)
		}
		if len(workouts) != 2 {
			t.Errorf("count = %d, want 2", len(workouts))
		}
	})

	t.Run("empty profile", func(t *testing.T) {
		workouts, err := ListWorkouts(db, "profile-9", "", nil, 0)
		if err != nil {
			t.Fatalf("list workouts: %v", err)
		}
		if len(workouts) != 0 {
			t.Errorf("count = %d, want 0", len(workouts))
		}
	})
}
