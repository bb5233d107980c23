package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/garagedesk/staff-auth/internal/core/domain"
)

func TestStaffDoc_Profile(t *testing.T) {
	oid := primitive.NewObjectID()
	d := staffDoc{
		ID:           oid,
		FullName:     "Sam Ortiz",
		Email:        "sam@garage.test",
		Role:         "Technician",
		PasswordHash: "x",
		PinHash:      "y",
	}

	p, err := d.profile()
	require.NoError(t, err)
	assert.Equal(t, oid.Hex(), p.ID)
	assert.Equal(t, domain.RoleTechnician, p.Role)
	assert.Equal(t, "sam@garage.test", p.Email)
}

func TestStaffDoc_ProfileRejectsUnknownRole(t *testing.T) {
	d := staffDoc{ID: primitive.NewObjectID(), Role: "Janitor"}

	_, err := d.profile()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStoreError(t *testing.T) {
	err := storeError(context.DeadlineExceeded)
	ae := domain.AsAuthError(err)
	assert.Equal(t, domain.ErrorNetwork, ae.Type)

	plain := errors.New("boom")
	err = storeError(plain)
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, domain.ErrorUnknown, domain.AsAuthError(err).Type)
}

func TestFindByID_MalformedID(t *testing.T) {
	r := &StaffRepository{}

	_, err := r.findByID(context.Background(), "not-an-object-id")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
