package memory

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
)

type organizationRepository struct {
	s *Store
}

func (r *organizationRepository) Create(ctx context.Context, org *model.Organization) error {
	defer r.s.lockWrite(ctx)()

	for _, o := range r.s.orgs {
		if o.Email == org.Email {
			return repository.ErrDuplicate
		}
	}
	if org.ID.IsZero() {
		org.ID = primitive.NewObjectID()
	}
	r.s.orgs[org.ID] = cloneOrganization(org)
	return nil
}

func (r *organizationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orgs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOrganization(o), nil
}

func (r *organizationRepository) GetByEmail(ctx context.Context, email string) (*model.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, o := range r.s.orgs {
		if o.Email == email {
			return cloneOrganization(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *organizationRepository) List(ctx context.Context) ([]*model.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.Organization, 0, len(r.s.orgs))
	for _, o := range r.s.orgs {
		out = append(out, cloneOrganization(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return idLess(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (r *organizationRepository) Update(ctx context.Context, org *model.Organization) error {
	defer r.s.lockWrite(ctx)()

	existing, ok := r.s.orgs[org.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, o := range r.s.orgs {
		if o.ID != org.ID && o.Email == org.Email {
			return repository.ErrDuplicate
		}
	}
	existing.Name = org.Name
	existing.Email = org.Email
	existing.Type = org.Type
	return nil
}

func (r *organizationRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	defer r.s.lockWrite(ctx)()

	o, ok := r.s.orgs[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.PasswordHash = hash
	return nil
}

func (r *organizationRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lockWrite(ctx)()

	if _, ok := r.s.orgs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.orgs, id)
	return nil
}
