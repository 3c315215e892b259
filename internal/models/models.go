package models

// User represents a bot user and the animals they own.
type User struct {
	ID   string   `json:"-"`
	Name string   `json:"name"`
	Cows []string `json:"cows"`
}

// Animal represents an enrolled animal. Its ID is the identifier model's
// predicted class for the enrollment photo, so two physical animals can end
// up with the same ID when the model has no dedicated class for one of them.
// Tag carries a per-enrollment uuid so such collisions stay observable.
type Animal struct {
	ID       string `json:"-"`
	Name     string `json:"name"`
	OwnerID  string `json:"owner"`
	PhotoRef string `json:"photo"`
	Tag      string `json:"tag"`
}

// Snapshot is the full durable state: the users document, the animals
// document and the missing-animal set.
type Snapshot struct {
	Users   map[string]*User
	Animals map[string]*Animal
	Missing []string
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Users:   make(map[string]*User),
		Animals: make(map[string]*Animal),
	}
}

// Clone returns a deep copy. The registry mutates a clone, persists it and
// only then swaps it in, so a failed save never corrupts the live state.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Users:   make(map[string]*User, len(s.Users)),
		Animals: make(map[string]*Animal, len(s.Animals)),
		Missing: append([]string(nil), s.Missing...),
	}
	for id, u := range s.Users {
		uc := *u
		uc.Cows = append([]string(nil), u.Cows...)
		c.Users[id] = &uc
	}
	for id, a := range s.Animals {
		ac := *a
		c.Animals[id] = &ac
	}
	return c
}

// IsMissing reports whether the animal id is currently flagged missing.
func (s *Snapshot) IsMissing(animalID string) bool {
	for _, id := range s.Missing {
		if id == animalID {
			return true
		}
	}
	return false
}
