package controllers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/gostarterkit/saaskit/app/models"
	"github.com/gostarterkit/saaskit/internal/pkg/env"
	"github.com/gostarterkit/saaskit/internal/pkg/mail"
	"github.com/gostarterkit/saaskit/internal/pkg/session"
)

func HandleAuthLogin(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		fm := fiber.Map{
			"type": "error",
		}

		// notice: in production you should not inform the user
		// with detailed messages about login failures
		user, err := userRepo.GetByEmail(c.FormValue("email"))
		if err != nil {
			fm["message"] = "There is a problem with the login process"

			return flash.WithError(c, fm).Redirect("/login")
		}

		if !user.CheckPassword(c.FormValue("password")) {
			fm["message"] = "There is a problem with the login process"

			return flash.WithError(c, fm).Redirect("/login")
		}

		if !user.IsActive() {
			fm["message"] = "Please activate your account first"

			return flash.WithError(c, fm).Redirect("/login")
		}

		if err := createUserSession(c, user); err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)

			return flash.WithError(c, fm).Redirect("/login")
		}

		now := time.Now()
		user.LastLoginAt = &now
		_ = userRepo.Update(user)

		fm = fiber.Map{
			"type":    "success",
			"message": "Welcome back!",
		}

		return flash.WithSuccess(c, fm).Redirect("/dashboard")
	}

	return c.Render("auth/login", fiber.Map{
		"Title": "Login",
		"Flash": flash.Get(c),
		"CSRF":  c.Locals("csrf"),
	}, "layouts/main")
}

func HandleAuthRegister(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		fm := fiber.Map{
			"type": "error",
		}

		name := strings.TrimSpace(c.FormValue("name"))
		email := strings.TrimSpace(c.FormValue("email"))
		password := c.FormValue("password")

		user, err := models.CreateUser(name, email, password)
		if err != nil {
			fm["message"] = fmt.Sprintf("Registration failed: %s", err)

			return flash.WithError(c, fm).Redirect("/register")
		}

		if err := user.GenerateActivationToken(); err != nil {
			fm["message"] = "Registration failed"

			return flash.WithError(c, fm).Redirect("/register")
		}

		if err := userRepo.Create(user); err != nil {
			fm["message"] = "An account with this email may already exist"

			return flash.WithError(c, fm).Redirect("/register")
		}

		activationURL := fmt.Sprintf("%s/activate?token=%s", publicBaseURL(), user.ActivationToken)
		if err := mail.SendActivationEmail(user.Email, activationURL); err == nil {
			_ = mail.SendWelcomeEmail(user.Email, user.Name)
		}

		fm = fiber.Map{
			"type":    "success",
			"message": "Account created. Please check your inbox to activate it.",
		}

		return flash.WithSuccess(c, fm).Redirect("/login")
	}

	return c.Render("auth/register", fiber.Map{
		"Title": "Register",
		"Flash": flash.Get(c),
		"CSRF":  c.Locals("csrf"),
	}, "layouts/main")
}

func HandleAuthActivate(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token", c.FormValue("token")))
	fm := fiber.Map{
		"type": "error",
	}

	if token == "" {
		fm["message"] = "Activation token missing"

		return flash.WithError(c, fm).Redirect("/login")
	}

	user, err := userRepo.GetByActivationToken(token)
	if err != nil {
		fm["message"] = "Invalid activation token"

		return flash.WithError(c, fm).Redirect("/login")
	}

	user.Status = models.STATUS_ACTIVE
	user.ActivationToken = ""
	user.ActivationSentAt = nil
	if err := userRepo.Update(user); err != nil {
		fm["message"] = "Activation failed, please try again"

		return flash.WithError(c, fm).Redirect("/login")
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "Account activated. You can log in now.",
	}

	return flash.WithSuccess(c, fm).Redirect("/login")
}

func HandleAuthLogout(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type": "error",
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		fm["message"] = "logged out (no sess)"

		return flash.WithError(c, fm).Redirect("/login")
	}

	err = sess.Destroy()
	if err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)

		return flash.WithError(c, fm).Redirect("/login")
	}

	c.Locals(FROM_PROTECTED, false)

	fm = fiber.Map{
		"type":    "success",
		"message": "See you soon!",
	}

	return flash.WithSuccess(c, fm).Redirect("/login")
}

func HandleForgotPassword(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		email := strings.TrimSpace(c.FormValue("email"))

		// Always answer the same way so the form cannot be used to probe
		// which addresses have accounts.
		fm := fiber.Map{
			"type":    "success",
			"message": "If an account exists for this address, a reset link is on its way.",
		}

		user, err := userRepo.GetByEmail(email)
		if err != nil {
			return flash.WithSuccess(c, fm).Redirect("/login")
		}

		if err := user.GenerateResetToken(); err != nil {
			return flash.WithSuccess(c, fm).Redirect("/login")
		}
		if err := userRepo.Update(user); err != nil {
			return flash.WithSuccess(c, fm).Redirect("/login")
		}

		resetURL := fmt.Sprintf("%s/reset-password?token=%s", publicBaseURL(), user.ResetToken)
		_ = mail.SendPasswordResetEmail(user.Email, resetURL)

		return flash.WithSuccess(c, fm).Redirect("/login")
	}

	return c.Render("auth/forgot_password", fiber.Map{
		"Title": "Forgot password",
		"Flash": flash.Get(c),
		"CSRF":  c.Locals("csrf"),
	}, "layouts/main")
}

func HandleResetPassword(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		token := strings.TrimSpace(c.FormValue("token"))
		password := c.FormValue("password")
		fm := fiber.Map{
			"type": "error",
		}

		user, err := userRepo.GetByResetToken(token)
		if err != nil || !user.IsResetTokenValid(token) {
			fm["message"] = "Reset link is invalid or has expired"

			return flash.WithError(c, fm).Redirect("/forgot-password")
		}

		if len(password) < 6 {
			fm["message"] = "Password must be at least 6 characters"

			return flash.WithError(c, fm).Redirect("/reset-password?token=" + token)
		}

		if err := user.SetPassword(password); err != nil {
			fm["message"] = "Could not update password"

			return flash.WithError(c, fm).Redirect("/forgot-password")
		}
		user.ClearResetToken()
		if err := userRepo.Update(user); err != nil {
			fm["message"] = "Could not update password"

			return flash.WithError(c, fm).Redirect("/forgot-password")
		}

		fm = fiber.Map{
			"type":    "success",
			"message": "Password updated. You can log in now.",
		}

		return flash.WithSuccess(c, fm).Redirect("/login")
	}

	return c.Render("auth/reset_password", fiber.Map{
		"Title": "Reset password",
		"Token": c.Query("token"),
		"Flash": flash.Get(c),
		"CSRF":  c.Locals("csrf"),
	}, "layouts/main")
}

// createUserSession sets all session keys for a logged-in user.
func createUserSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}

	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, user.ID)
	sess.Set(USER_NAME, user.Name)
	if err := sess.Save(); err != nil {
		return err
	}

	tier := "free"
	if user.IsPro {
		tier = "pro"
	}
	return session.SetSessionValue(c, "user_tier", tier)
}

func publicBaseURL() string {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return base
}
