package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/garagedesk/staff-auth/internal/core/domain"
	"github.com/garagedesk/staff-auth/internal/core/ports"
)

const collectionStaff = "staff_accounts"

// StaffRepository keeps staff accounts in MongoDB. It is the credential store,
// the quick-access profile directory and the provisioning repository at once.
type StaffRepository struct {
	col      *mongo.Collection
	tokens   ports.ResetTokenStore
	notifier ports.ResetNotifier
	log      zerolog.Logger
}

var (
	_ ports.CredentialStore  = (*StaffRepository)(nil)
	_ ports.ProfileDirectory = (*StaffRepository)(nil)
	_ ports.StaffRepository  = (*StaffRepository)(nil)
)

func NewStaffRepository(db *mongo.Database, tokens ports.ResetTokenStore, notifier ports.ResetNotifier, log zerolog.Logger) *StaffRepository {
	return &StaffRepository{
		col:      db.Collection(collectionStaff),
		tokens:   tokens,
		notifier: notifier,
		log:      log,
	}
}

type staffDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	FullName     string             `bson:"full_name"`
	Email        string             `bson:"email"`
	Role         string             `bson:"role"`
	AvatarURL    string             `bson:"avatar_url,omitempty"`
	Phone        string             `bson:"phone,omitempty"`
	Address      string             `bson:"address,omitempty"`
	PasswordHash string             `bson:"password_hash"`
	PinHash      string             `bson:"pin_hash,omitempty"`
	CreatedAt    int64              `bson:"created_at"`
	UpdatedAt    int64              `bson:"updated_at"`
}

func (d staffDoc) profile() (domain.UserProfile, error) {
	role, err := domain.ParseRole(d.Role)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("staff %s: %w", d.ID.Hex(), err)
	}
	return domain.UserProfile{
		ID:        d.ID.Hex(),
		FullName:  d.FullName,
		Role:      role,
		AvatarURL: d.AvatarURL,
		Email:     d.Email,
		Phone:     d.Phone,
		Address:   d.Address,
	}, nil
}

// EnsureIndexes creates the unique email index on the staff collection.
func (r *StaffRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "full_name", Value: 1}}},
	})
	return err
}

// Create inserts a new staff account.
func (r *StaffRepository) Create(ctx context.Context, account *domain.StaffAccount) (*domain.StaffAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	p := account.Profile
	doc := staffDoc{
		FullName:     p.FullName,
		Email:        strings.ToLower(p.Email),
		Role:         string(p.Role),
		AvatarURL:    p.AvatarURL,
		Phone:        p.Phone,
		Address:      p.Address,
		PasswordHash: account.PasswordHash,
		PinHash:      account.PinHash,
		CreatedAt:    account.CreatedAt.Unix(),
		UpdatedAt:    account.UpdatedAt.Unix(),
	}

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert staff: %w", err)
	}

	created := *account
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		created.Profile.ID = oid.Hex()
	}
	created.Profile.Email = doc.Email
	return &created, nil
}

// ListProfiles returns every staff profile ordered by role then name.
func (r *StaffRepository) ListProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "role", Value: 1}, {Key: "full_name", Value: 1}}).
		SetProjection(bson.M{"password_hash": 0, "pin_hash": 0})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storeError(err)
	}
	defer cur.Close(ctx)

	var docs []staffDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeError(err)
	}

	profiles := make([]domain.UserProfile, 0, len(docs))
	for _, d := range docs {
		p, err := d.profile()
		if err != nil {
			// a bad role row must not hide the rest of the roster
			r.log.Warn().Err(err).Str("staff_id", d.ID.Hex()).Msg("skipping staff account with unknown role")
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func (r *StaffRepository) GetProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	d, err := r.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := d.profile()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// VerifyEmailPassword checks a standard login. Unknown addresses and wrong
// passwords are indistinguishable to the caller.
func (r *StaffRepository) VerifyEmailPassword(ctx context.Context, email, password string) (*domain.UserProfile, error) {
	d, err := r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.NewAuthError(domain.ErrorInvalidCredentials, domain.MsgBadLogin)
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)) != nil {
		return nil, domain.NewAuthError(domain.ErrorInvalidCredentials, domain.MsgBadLogin)
	}
	p, err := d.profile()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *StaffRepository) VerifyPin(ctx context.Context, userID, pin string) (*domain.UserProfile, error) {
	d, err := r.findByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.NewAuthError(domain.ErrorUserNotFound, domain.MsgUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	if d.PinHash == "" {
		return nil, domain.NewAuthError(domain.ErrorPinNotFound, domain.MsgPinNotSet)
	}
	if bcrypt.CompareHashAndPassword([]byte(d.PinHash), []byte(pin)) != nil {
		return nil, domain.NewAuthError(domain.ErrorInvalidPin, domain.MsgBadPin)
	}
	p, err := d.profile()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *StaffRepository) VerifyManagerPassword(ctx context.Context, userID, password string) (*domain.UserProfile, error) {
	d, err := r.findByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.NewAuthError(domain.ErrorUserNotFound, domain.MsgUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	if d.Role != string(domain.RoleManager) {
		return nil, domain.NewAuthError(domain.ErrorInvalidCredentials, domain.MsgNotManager)
	}
	if bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)) != nil {
		return nil, domain.NewAuthError(domain.ErrorInvalidCredentials, domain.MsgBadManagerPass)
	}
	p, err := d.profile()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RequestPasswordReset issues a token and hands it to the notifier. Unknown
// addresses succeed without side effects.
func (r *StaffRepository) RequestPasswordReset(ctx context.Context, email string) error {
	d, err := r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	p, err := d.profile()
	if err != nil {
		return err
	}

	token, err := r.tokens.Issue(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	if err := r.notifier.SendPasswordReset(ctx, p, token); err != nil {
		return fmt.Errorf("send reset token: %w", err)
	}
	return nil
}

// ConfirmPasswordReset consumes token and stores the new password hash.
func (r *StaffRepository) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	userID, err := r.tokens.Consume(ctx, token)
	if err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return domain.ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"password_hash": string(hash), "updated_at": time.Now().UTC().Unix()},
	})
	if err != nil {
		return storeError(err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrInvalidResetToken
	}
	return nil
}

func (r *StaffRepository) findByID(ctx context.Context, id string) (*staffDoc, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *StaffRepository) findOne(ctx context.Context, filter bson.M) (*staffDoc, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d staffDoc
	if err := r.col.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storeError(err)
	}
	return &d, nil
}

// storeError reports connectivity failures as NETWORK_ERROR so terminals can
// tell a dead link from a rejected credential.
func storeError(err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewAuthError(domain.ErrorNetwork, domain.MsgNetwork)
	}
	return fmt.Errorf("staff store: %w", err)
}
