package controllers

import (
	"github.com/gostarterkit/saaskit/app/repository"
	"github.com/gostarterkit/saaskit/internal/pkg/database"
	"github.com/gostarterkit/saaskit/internal/pkg/usercontext"
)

// Session keys shared with the user context middleware.
const (
	AUTH_KEY       string = usercontext.AuthKey
	USER_ID        string = usercontext.KeyUserID
	USER_NAME      string = usercontext.KeyUsername
	FROM_PROTECTED string = usercontext.KeyFromProtected
)

var userRepo repository.UserRepository

// InitializeControllers wires the repositories the controllers share.
// Called once from the router after the database is up.
func InitializeControllers() {
	factory := repository.NewFactory(database.GetDB())
	userRepo = factory.GetUserRepository()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
