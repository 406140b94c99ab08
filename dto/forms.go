package dto

// LoginForm is posted by the login page.
type LoginForm struct {
	CSRFToken string `form:"csrf_token" binding:"required"`
	Username  string `form:"username" binding:"required,max=64"`
	Password  string `form:"password" binding:"required,max=72"`
}

// RegisterForm is posted by the registration page.
type RegisterForm struct {
	CSRFToken string `form:"csrf_token" binding:"required"`
	Username  string `form:"username" binding:"required,alphanum,max=64"`
	Password  string `form:"password" binding:"required,max=72"`
	Email     string `form:"email" binding:"required,email,max=320"`
	Date      string `form:"date" binding:"required,datetime=2006-01-02"`
	FirstName string `form:"first_name" binding:"required,max=255"`
	LastName  string `form:"last_name" binding:"required,max=255"`
}

// AuthorizeQuery carries the GET /authorize parameters.
type AuthorizeQuery struct {
	ClientID    string `form:"client_id" binding:"required"`
	RedirectURI string `form:"redirect_uri" binding:"required"`
	State       string `form:"state" binding:"required"`
}

// AuthorizeForm is the consent decision posted back to /authorize.
type AuthorizeForm struct {
	AuthorizeQuery
	Decision string `form:"decision"`
}

// Approved reports whether the user approved the client.
func (f *AuthorizeForm) Approved() bool { return f.Decision == "approve" }

// CallbackQuery carries the authorization response.
type CallbackQuery struct {
	Code  string `form:"code" binding:"required"`
	State string `form:"state" binding:"required"`
}

// ValidateForm is the token introspection request.
type ValidateForm struct {
	AccessToken string `form:"access_token" binding:"required"`
}
