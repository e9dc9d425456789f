package services

import (
	"context"
	"fmt"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// UserService owns account registration, authentication and profile
// updates.
type UserService struct {
	repo *repository.UserRepository
}

func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// RegisterUser hashes the password and creates the account.
func (s *UserService) RegisterUser(ctx context.Context, user *models.User, password string) (*models.User, error) {
	if user.Email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}
	if existing, _ := s.repo.GetUserByEmail(ctx, user.Email); existing != nil {
		return nil, fmt.Errorf("email already registered")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.HashedPassword = string(hashed)
	if user.Role == "" {
		user.Role = "user"
	}
	return s.repo.CreateUser(ctx, user)
}

// AuthenticateUser verifies the credentials and returns the user.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid email or password")
	}
	return user, nil
}

// GetUser fetches a user by hex id.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id")
	}
	return s.repo.GetUserByID(ctx, objID)
}

// GetAllUsers returns every registered account, for the admin overview.
func (s *UserService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	return s.repo.GetAllUsers(ctx)
}

// UpdateUser applies profile edits (name only; email and role changes are
// not supported through this path).
func (s *UserService) UpdateUser(ctx context.Context, id primitive.ObjectID, name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	return s.repo.UpdateUser(ctx, id, bson.M{"name": name})
}
