package resolver

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"petnotify/internal/model"
	"petnotify/internal/storage"
	logx "petnotify/pkg/logx"
)

func uid(v int64) *model.UserID {
	u := model.UserID(v)
	return &u
}

func TestRecipients(t *testing.T) {
	t.Parallel()
	pet := model.Pet{ID: 1, OwnerID: uid(1)}
	tests := []struct {
		name    string
		pet     model.Pet
		grants  []model.AccessGrant
		author  *model.UserID
		include bool
		want    []model.UserID
	}{
		{
			name:   "owner and grants minus author",
			pet:    pet,
			grants: []model.AccessGrant{{UserID: 2, Active: true}, {UserID: 3, Active: true}},
			author: uid(2),
			want:   []model.UserID{1, 3},
		},
		{
			name:   "duplicate grant rows and owner also granted",
			pet:    pet,
			grants: []model.AccessGrant{{UserID: 2, Active: true}, {UserID: 2, Active: true}, {UserID: 1, Active: true}},
			want:   []model.UserID{1, 2},
		},
		{
			name:   "inactive grants ignored",
			pet:    pet,
			grants: []model.AccessGrant{{UserID: 2, Active: false}},
			want:   []model.UserID{1},
		},
		{
			name:    "author kept when included",
			pet:     pet,
			grants:  []model.AccessGrant{{UserID: 2, Active: true}},
			author:  uid(1),
			include: true,
			want:    []model.UserID{1, 2},
		},
		{
			name: "no owner no grants",
			pet:  model.Pet{ID: 9},
			want: nil,
		},
		{
			name:   "author is the only candidate",
			pet:    pet,
			author: uid(1),
			want:   nil,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Recipients(tt.pet, tt.grants, tt.author, tt.include)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Recipients = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestForPetScenarios(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := storage.NewMemory(storage.Config{})
	r := New(st, logx.Nop())

	// Orphaned pet: no owner, no grants.
	if err := st.UpsertPet(ctx, model.Pet{ID: 5, Name: "Shadow"}); err != nil {
		t.Fatal(err)
	}
	got, err := r.ForPet(ctx, 5, nil, false)
	if err != nil || len(got) != 0 {
		t.Fatalf("orphan = %v, %v", got, err)
	}

	// Unknown pet is also empty, not an error.
	got, err = r.ForPet(ctx, 404, nil, false)
	if err != nil || len(got) != 0 {
		t.Fatalf("unknown = %v, %v", got, err)
	}

	_ = st.UpsertPet(ctx, model.Pet{ID: 6, Name: "Rex", OwnerID: uid(1)})
	_, _ = st.UpsertGrant(ctx, model.AccessGrant{PetID: 6, UserID: 2, Level: model.AccessWrite, Active: true})
	got, err = r.ForPet(ctx, 6, uid(2), false)
	if err != nil || !reflect.DeepEqual(got, []model.UserID{1}) {
		t.Fatalf("author excluded = %v, %v", got, err)
	}
}

func TestTargetsLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := storage.NewMemory(storage.Config{})
	_ = st.UpsertPet(ctx, model.Pet{ID: 3, Name: "Bella"})
	targets := DomainTargets(st)

	v, err := targets.Lookup(ctx, model.TargetRef{Type: model.TargetPet, ID: 3})
	if err != nil {
		t.Fatalf("Lookup pet: %v", err)
	}
	if p, ok := v.(model.Pet); !ok || p.Name != "Bella" {
		t.Fatalf("Lookup pet = %#v", v)
	}

	for _, ref := range []model.TargetRef{
		{Type: model.TargetPet, ID: 4},
		{Type: model.TargetPetEvent, ID: 1},
		{Type: "invoice", ID: 1},
		{},
	} {
		if _, err := targets.Lookup(ctx, ref); !errors.Is(err, ErrTargetNotFound) {
			t.Fatalf("Lookup(%v) = %v, want ErrTargetNotFound", ref, err)
		}
	}

	targets.Register(model.TargetVerification, func(context.Context, int64) (any, error) {
		return "ok", nil
	})
	if v, err := targets.Lookup(ctx, model.TargetRef{Type: model.TargetVerification, ID: 1}); err != nil || v != "ok" {
		t.Fatalf("custom lookup = %v, %v", v, err)
	}
}
