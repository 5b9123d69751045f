package memory

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"filevault/models"
	"filevault/repository"
)

type userRepository struct {
	store *Store
	users []models.User
}

func (r *userRepository) Insert(_ context.Context, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	r.users = append(r.users, *user)
	return nil
}

func (r *userRepository) get(match func(*models.User) bool) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.users {
		if match(&r.users[i]) {
			u := r.users[i]
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.get(func(u *models.User) bool { return u.ID == id })
}

func (r *userRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.get(func(u *models.User) bool { return u.Username == username })
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.get(func(u *models.User) bool { return u.Email == email })
}

func (r *userRepository) ListByUsernames(_ context.Context, usernames []string) ([]models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.User
	for i := range r.users {
		if contains(usernames, r.users[i].Username) {
			out = append(out, r.users[i])
		}
	}
	return out, nil
}

func (r *userRepository) AdjustUsedStorage(_ context.Context, id primitive.ObjectID, delta int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.users {
		if r.users[i].ID == id {
			r.users[i].UsedStorage += delta
			return nil
		}
	}
	return repository.ErrNotFound
}

type shareRepository struct {
	store  *Store
	shares []models.SharedResource
}

func (r *shareRepository) InsertMany(_ context.Context, shares []models.SharedResource) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range shares {
		if shares[i].ID.IsZero() {
			shares[i].ID = primitive.NewObjectID()
		}
		r.shares = append(r.shares, shares[i])
	}
	return nil
}

func (r *shareRepository) GetByID(_ context.Context, id primitive.ObjectID) (*models.SharedResource, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.shares {
		if r.shares[i].ID == id {
			s := r.shares[i]
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *shareRepository) ListByGrantor(_ context.Context, grantorID primitive.ObjectID) ([]models.SharedResource, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.SharedResource
	for i := range r.shares {
		if r.shares[i].GrantorID == grantorID {
			out = append(out, r.shares[i])
		}
	}
	return out, nil
}

func (r *shareRepository) DeleteByIDs(_ context.Context, grantorID primitive.ObjectID, ids []primitive.ObjectID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.shares[:0]
	for i := range r.shares {
		drop := r.shares[i].GrantorID == grantorID
		if drop {
			drop = false
			for _, id := range ids {
				if r.shares[i].ID == id {
					drop = true
					break
				}
			}
		}
		if !drop {
			kept = append(kept, r.shares[i])
		}
	}
	r.shares = kept
	return nil
}

func (r *shareRepository) DeleteByResourceURIs(_ context.Context, uris []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.shares[:0]
	for i := range r.shares {
		if contains(uris, r.shares[i].GrantedResourceURI) {
			continue
		}
		kept = append(kept, r.shares[i])
	}
	r.shares = kept
	return nil
}
