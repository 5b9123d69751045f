package services

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"filevault/apperr"
	"filevault/cryptox"
	"filevault/models"
	"filevault/repository"
	"filevault/utils"
)

const defaultStorageCapacity = 15 * 1024 * 1024 * 1024

// AuthService handles account creation and login. Each new account gets a
// home folder in the same transaction as the user record.
type AuthService struct {
	store         repository.Store
	jwtSecret     string
	tokenLifetime int

	hashSem chan struct{}
}

func NewAuthService(store repository.Store, jwtSecret string, tokenLifetimeHours int) *AuthService {
	if tokenLifetimeHours < 1 {
		tokenLifetimeHours = 24
	}
	return &AuthService{
		store:         store,
		jwtSecret:     jwtSecret,
		tokenLifetime: tokenLifetimeHours,
		hashSem:       make(chan struct{}, 4),
	}
}

func (s *AuthService) hashPassword(password, saltHex string) (string, error) {
	s.hashSem <- struct{}{}
	defer func() { <-s.hashSem }()
	return cryptox.HashPassword([]byte(password), []byte(saltHex))
}

// Signup registers a user and their home folder.
func (s *AuthService) Signup(ctx context.Context, username, email, password string) (*models.User, error) {
	if err := utils.ValidateUsername(username); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := utils.ValidateEmail(email); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	if _, err := s.store.Users().GetByUsername(ctx, username); err == nil {
		return nil, apperr.Validation("Username is already taken")
	} else if err != repository.ErrNotFound {
		return nil, apperr.Server("Something went wrong", err)
	}
	if _, err := s.store.Users().GetByEmail(ctx, email); err == nil {
		return nil, apperr.Validation("An account with this email already exists")
	} else if err != repository.ErrNotFound {
		return nil, apperr.Server("Something went wrong", err)
	}

	salt, err := cryptox.NewSalt()
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	hashed, err := s.hashPassword(password, salt)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}

	now := time.Now()
	user := &models.User{
		Username:        username,
		Email:           email,
		Password:        hashed,
		Salt:            salt,
		HomeFolderURI:   uuid.NewString(),
		Plan:            "free",
		UsedStorage:     0,
		StorageCapacity: defaultStorageCapacity,
		CreatedAt:       now,
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Users().Insert(ctx, user); err != nil {
			return err
		}
		return s.store.Folders().Insert(ctx, &models.Folder{
			URI:          user.HomeFolderURI,
			Name:         "Home",
			Type:         "folder",
			IsRoot:       true,
			UserID:       user.ID,
			TimeCreated:  now,
			LastModified: now,
		})
	})
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	return user, nil
}

// Login verifies credentials and issues a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err == repository.ErrNotFound {
		return nil, "", apperr.Validation("Invalid email or password")
	} else if err != nil {
		return nil, "", apperr.Server("Something went wrong", err)
	}

	hashed, err := s.hashPassword(password, user.Salt)
	if err != nil {
		return nil, "", apperr.Server("Something went wrong", err)
	}
	if subtle.ConstantTimeCompare([]byte(hashed), []byte(user.Password)) != 1 {
		return nil, "", apperr.Validation("Invalid email or password")
	}

	token, err := utils.GenerateJWTTokenWithSecret(user, s.jwtSecret, s.tokenLifetime)
	if err != nil {
		return nil, "", apperr.Server("Something went wrong", err)
	}
	return user, token, nil
}

// GetUser loads a user by id.
func (s *AuthService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound("User doesn't exist")
	} else if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	return user, nil
}
