package models

import "testing"

func TestPopularMappings(t *testing.T) {
	db := testDB(t)

	t.Run("record increments", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if err := RecordMappingChoice(db, "squat", "Barbell Back Squat"); err != nil {
				t.Fatalf("record mapping choice: %v", err)
			}
		}
		_ = RecordMappingChoice(db, "squat", "Goblet Squat")
		_ = RecordMappingChoice(db, "squat", "Air Squat")
		_ = RecordMappingChoice(db, "lunge", "Walking Lunge")

		popular, err := PopularMappings(db, "squat", 0)
		if err != nil {
			t.Fatalf("popular mappings: %v", err)
		}
		if len(popular) != 3 {
			t.Fatalf("count = %d, want 3", len(popular))
		}
		if popular[0].GarminName != "Barbell Back Squat" || popular[0].Count != 3 {
			t.Errorf("top = %q (%d), want Barbell Back Squat (3)", popular[0].GarminName, popular[0].Count)
		}
	})

	t.Run("ties break alphabetically", func(t *testing.T) {
		popular, _ := PopularMappings(db, "squat", 0)
		if popular[1].GarminName != "Air Squat" || popular[2].GarminName != "Goblet Squat" {
			t.Errorf("tie order = %q, %q, want Air Squat then Goblet Squat", popular[1].GarminName, popular[2].GarminName)
		}
	})

	t.Run("limit", func(t *testing.T) {
		popular, err := PopularMappings(db, "squat", 1)
		if err != nil {
			t.Fatalf("popular mappings: %v", err)
		}
		if len(popular) != 1 {
			t.Errorf("count = %d, want 1", len(popular))
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		popular, err := PopularMappings(db, "zercher hold", 0)
		if err != nil {
			t.Fatalf("popular mappings: %v", err)
		}
		if len(popular) != 0 {
			t.Errorf("count = %d, want 0", len(popular))
		}
	})
}

func TestPopularityStore(t *testing.T) {
	db := testDB(t)

	_ = RecordMappingChoice(db, "burpee", "Burpee")
	_ = RecordMappingChoice(db, "burpee", "Burpee")

	store := &PopularityStore{DB: db}
	choices := store.PopularChoices("burpee", 5)
	if len(choices) != 1 {
		t.Fatalf("count = %d, want 1", len(choices))
	}
	if choices[0].Name != "Burpee" || choices[0].Count != 2 {
		t.Errorf("choice = %q (%d), want Burpee (2)", choices[0].Name, choices[0].Count)
	}
}

func TestMappingStore(t *testing.T) {
	db := testDB(t)

	_, _ = AddUserMapping(db, "profile-1", "dl", "Barbell Deadlift")

	store := &MappingStore{DB: db}
	name, ok := store.UserMapping("profile-1", "dl")
	if !ok || name != "Barbell Deadlift" {
		t.Errorf("mapping = %q, %v, want Barbell Deadlift, true", name, ok)
	}

	if _, ok := store.UserMapping("profile-1", "ohp"); ok {
		t.Error("unknown name reported a mapping")
	}
	if _, ok := store.UserMapping("profile-2", "dl"); ok {
		t.Error("other profile saw the mapping")
	}
}
