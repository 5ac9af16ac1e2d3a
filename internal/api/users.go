package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"exchange_api/internal/middleware" // Request id key
	"exchange_api/internal/service"    // User service

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// UserRequest is the body of create, update and profile update calls.
// Optional fields are pointers so that an absent field can be told apart from "".
type UserRequest struct {
	Name        string  `json:"name"`        // Required after trimming
	Email       string  `json:"email"`       // Required, unique after trimming
	Phone       *string `json:"phone"`       // Optional
	Address     *string `json:"address"`     // Optional
	MemberSince *string `json:"memberSince"` // Optional, "Month YYYY"
}

func (r UserRequest) input() service.UserInput {
	return service.UserInput{
		Name:        r.Name,
		Email:       r.Email,
		Phone:       r.Phone,
		Address:     r.Address,
		MemberSince: r.MemberSince,
	}
}

const profileNotFound = "No user profile found."

// ListUsersHandler returns all users ordered by id
func ListUsersHandler(svc *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := svc.List(c.Request.Context())
		if err != nil {
			writeError(c, err, "Failed to fetch users")
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

// GetUserHandler returns a single user
func GetUserHandler(svc *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			return
		}
		user, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err, "Failed to fetch user")
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// CreateUserHandler creates a user and points Location at it
func CreateUserHandler(svc *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := svc.Create(c.Request.Context(), req.input())
		if err != nil {
			writeError(c, err, "Failed to create user")
			return
		}
		c.Header("Location", "/api/users/"+strconv.FormatUint(uint64(user.ID), 10))
		c.JSON(http.StatusCreated, user)
	}
}

// UpdateUserHandler replaces a user's fields
func UpdateUserHandler(svc *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			return
		}
		var req UserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := svc.Update(c.Request.Context(), id, req.input())
		if err != nil {
			writeError(c, err, "Failed to update user")
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// DeleteUserHandler removes a user and its transactions
func DeleteUserHandler(svc *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), id); err != nil {
			writeError(c, err, "Failed to delete user")
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// GetProfileHandler returns the user acting as the current profile
func GetProfileHandler(svc *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := svc.GetProfile(c.Request.Context())
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": profileNotFound})
			return
		}
		if err != nil {
			writeError(c, err, "Failed to fetch profile")
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// UpdateProfileHandler updates the profile user like UpdateUserHandler
func UpdateProfileHandler(svc *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := svc.UpdateProfile(c.Request.Context(), req.input())
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": profileNotFound})
			return
		}
		if err != nil {
			writeError(c, err, "Failed to update profile")
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// userID parses the :id path parameter, answering 400 when it is not a positive integer
func userID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, strconv.IntSize)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return 0, false
	}
	return uint(id), true
}

// writeError maps service errors onto status codes; anything else is a 500
func writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "A user with this email already exists."})
	default:
		logrus.WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString(middleware.RequestIDKey),
			"error":      err.Error(),
		}).Error(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
