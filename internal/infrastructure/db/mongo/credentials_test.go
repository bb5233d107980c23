package mongo

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"golang.org/x/crypto/bcrypt"

	"github.com/garagedesk/staff-auth/internal/core/domain"
)

const staffNS = "garage_auth.staff_accounts"

type stubTokens struct {
	issued   []string
	consumed string
	err      error
}

func (s *stubTokens) Issue(_ context.Context, userID string) (string, error) {
	s.issued = append(s.issued, userID)
	return "tok-" + userID, nil
}

func (s *stubTokens) Consume(_ context.Context, _ string) (string, error) {
	return s.consumed, s.err
}

type sentReset struct {
	profile domain.UserProfile
	token   string
}

type stubNotifier struct {
	sent []sentReset
}

func (s *stubNotifier) SendPasswordReset(_ context.Context, p domain.UserProfile, token string) error {
	s.sent = append(s.sent, sentReset{profile: p, token: token})
	return nil
}

func hash(t *testing.T, secret string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func staffRow(id primitive.ObjectID, role, passwordHash, pinHash string) bson.D {
	d := bson.D{
		{Key: "_id", Value: id},
		{Key: "full_name", Value: "Sam Ortiz"},
		{Key: "email", Value: "sam@garage.test"},
		{Key: "role", Value: role},
		{Key: "password_hash", Value: passwordHash},
	}
	if pinHash != "" {
		d = append(d, bson.E{Key: "pin_hash", Value: pinHash})
	}
	return d
}

func found(row bson.D) bson.D {
	return mtest.CreateCursorResponse(0, staffNS, mtest.FirstBatch, row)
}

func notFound() bson.D {
	return mtest.CreateCursorResponse(0, staffNS, mtest.FirstBatch)
}

func newRepo(mt *mtest.T) (*StaffRepository, *stubTokens, *stubNotifier) {
	tokens := &stubTokens{}
	notifier := &stubNotifier{}
	return NewStaffRepository(mt.DB, tokens, notifier, zerolog.Nop()), tokens, notifier
}

func authErr(t *testing.T, err error) *domain.AuthError {
	t.Helper()
	var ae *domain.AuthError
	require.ErrorAs(t, err, &ae)
	return ae
}

func TestStaffRepository_VerifyEmailPassword(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id := primitive.NewObjectID()

	mt.Run("correct password", func(mt *mtest.T) {
		repo, _, _ := newRepo(mt)
		mt.AddMockResponses(found(staffRow(id, "Front Desk", hash(mt.T, "frontpass"), "")))

		p, err := repo.VerifyEmailPassword(context.Background(), "Sam@Garage.test", "frontpass")
		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), p.ID)
		assert.Equal(mt, domain.RoleFrontDesk, p.Role)
	})

	mt.Run("unknown email looks like a wrong password", func(mt *mtest.T) {
		repo, _, _ := newRepo(mt)
		mt.AddMockResponses(notFound())
		_, unknownErr := repo.VerifyEmailPassword(context.Background(), "ghost@garage.test", "whatever")

		mt.AddMockResponses(found(staffRow(id, "Front Desk", hash(mt.T, "frontpass"), "")))
		_, wrongErr := repo.VerifyEmailPassword(context.Background(), "sam@garage.test", "nope")

		unknown, wrong := authErr(mt.T, unknownErr), authErr(mt.T, wrongErr)
		assert.Equal(mt, domain.ErrorInvalidCredentials, unknown.Type)
		assert.Equal(mt, domain.MsgBadLogin, unknown.Message)
		assert.Equal(mt, unknown.Type, wrong.Type)
		assert.Equal(mt, unknown.Message, wrong.Message)
	})
}

func TestStaffRepository_VerifyPin(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id := primitive.NewObjectID()

	mt.Run("correct pin", func(mt *mtest.T) {
		repo, _, _ := newRepo(mt)
		mt.AddMockResponses(found(staffRow(id, "Technician", hash(mt.T, "techpass"), hash(mt.T, "4321"))))

		p, err := repo.VerifyPin(context.Background(), id.Hex(), "4321")
		require.NoError(mt, err)
		assert.Equal(mt, domain.RoleTechnician, p.Role)
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		repo, _, _ := newRepo(mt)
		mt.AddMockResponses(notFound())

		_, err := repo.VerifyPin(context.Background(), id.Hex(), "4321")
		ae := authErr(mt.T, err)
		assert.Equal(mt, domain.ErrorUserNotFound, ae.Type)
		assert.Equal(mt, domain.MsgUserNotFound, ae.Message)
	})

	mt.Run("no pin set", func(mt *mtest.T) {
		repo, _, _ := newRepo(mt)
		mt.AddMockResponses(found(staffRow(id, "Technician", hash(mt.T, "techpass"), "")))

		_, err := repo.VerifyPin(context.Background(), id.Hex(), "4321")
		ae := authErr(mt.T, err)
		assert.Equal(mt, domain.ErrorPinNotFound, ae.Type)
		assert.Equal(mt, domain.MsgPinNotSet, ae.Message)
	})

	mt.Run("wrong pin", func(mt *mtest.T) {
		repo, _, _ := newRepo(mt)
		mt.AddMockResponses(found(staffRow(id, "Technician", hash(mt.T, "techpass"), hash(mt.T, "4321"))))

		_, err := repo.VerifyPin(context.Background(), id.Hex(), "0000")
		ae := authErr(mt.T, err)
		assert.Equal(mt, domain.ErrorInvalidPin, ae.Type)
		assert.Equal(mt, "Invalid PIN", ae.Message)
	})
}

func TestStaffRepository_VerifyManagerPassword(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id := primitive.NewObjectID()

	mt.Run("manager", func(mt *mtest.T) {
		repo, _, _ := newRepo(mt)
		mt.AddMockResponses(found(staffRow(id, "Manager", hash(mt.T, "bosspass1"), "")))

		p, err := repo.VerifyManagerPassword(context.Background(), id.Hex(), "bosspass1")
		require.NoError(mt, err)
		assert.True(mt, p.IsManager())
	})

	mt.Run("not a manager", func(mt *mtest.T) {
		repo, _, _ := newRepo(mt)
		mt.AddMockResponses(found(staffRow(id, "Technician", hash(mt.T, "techpass"), "")))

		_, err := repo.VerifyManagerPassword(context.Background(), id.Hex(), "techpass")
		ae := authErr(mt.T, err)
		assert.Equal(mt, domain.ErrorInvalidCredentials, ae.Type)
		assert.Equal(mt, domain.MsgNotManager, ae.Message)
	})

	mt.Run("wrong password", func(mt *mtest.T) {
		repo, _, _ := newRepo(mt)
		mt.AddMockResponses(found(staffRow(id, "Manager", hash(mt.T, "bosspass1"), "")))

		_, err := repo.VerifyManagerPassword(context.Background(), id.Hex(), "nope")
		ae := authErr(mt.T, err)
		assert.Equal(mt, domain.ErrorInvalidCredentials, ae.Type)
		assert.Equal(mt, domain.MsgBadManagerPass, ae.Message)
	})
}

func TestStaffRepository_RequestPasswordReset(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id := primitive.NewObjectID()

	mt.Run("unknown address is silent", func(mt *mtest.T) {
		repo, tokens, notifier := newRepo(mt)
		mt.AddMockResponses(notFound())

		require.NoError(mt, repo.RequestPasswordReset(context.Background(), "ghost@garage.test"))
		assert.Empty(mt, tokens.issued)
		assert.Empty(mt, notifier.sent)
	})

	mt.Run("known address gets a link", func(mt *mtest.T) {
		repo, tokens, notifier := newRepo(mt)
		mt.AddMockResponses(found(staffRow(id, "Technician", hash(mt.T, "techpass"), "")))

		require.NoError(mt, repo.RequestPasswordReset(context.Background(), "sam@garage.test"))
		assert.Equal(mt, []string{id.Hex()}, tokens.issued)
		require.Len(mt, notifier.sent, 1)
		assert.Equal(mt, "tok-"+id.Hex(), notifier.sent[0].token)
		assert.Equal(mt, id.Hex(), notifier.sent[0].profile.ID)
	})
}

func TestStaffRepository_ConfirmPasswordReset(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id := primitive.NewObjectID()

	mt.Run("account updated", func(mt *mtest.T) {
		repo, tokens, _ := newRepo(mt)
		tokens.consumed = id.Hex()
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		require.NoError(mt, repo.ConfirmPasswordReset(context.Background(), "tok", "newsecret"))
	})

	mt.Run("account gone", func(mt *mtest.T) {
		repo, tokens, _ := newRepo(mt)
		tokens.consumed = id.Hex()
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.ConfirmPasswordReset(context.Background(), "tok", "newsecret")
		assert.ErrorIs(mt, err, domain.ErrInvalidResetToken)
	})

	mt.Run("token rejected", func(mt *mtest.T) {
		repo, tokens, _ := newRepo(mt)
		tokens.err = domain.ErrInvalidResetToken

		err := repo.ConfirmPasswordReset(context.Background(), "tok", "newsecret")
		assert.ErrorIs(mt, err, domain.ErrInvalidResetToken)
	})
}

func TestStaffRepository_ListProfilesSkipsUnknownRoles(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("bad row", func(mt *mtest.T) {
		var buf bytes.Buffer
		repo := NewStaffRepository(mt.DB, &stubTokens{}, &stubNotifier{}, zerolog.New(&buf))
		good, bad := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, staffNS, mtest.FirstBatch,
			staffRow(good, "Technician", "", ""),
			staffRow(bad, "Janitor", "", ""),
		))

		profiles, err := repo.ListProfiles(context.Background())
		require.NoError(mt, err)
		require.Len(mt, profiles, 1)
		assert.Equal(mt, good.Hex(), profiles[0].ID)
		assert.Contains(mt, buf.String(), bad.Hex())
		assert.Contains(mt, buf.String(), `"level":"warn"`)
	})
}
