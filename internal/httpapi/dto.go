package httpapi

// Request DTOs validated with go-playground/validator struct tags, mirrored
// against spec §6's validation rules (username 3-30 chars matching
// [A-Za-z0-9_]+, password complexity classes, RFC-5322-practical email).

type registerRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=30,alphanum_underscore"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,password_complexity"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	Username string `json:"username" validate:"omitempty,min=3,max=30,alphanum_underscore"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,password_complexity"`
}

type updateFileRequest struct {
	OriginalName *string  `json:"originalName" validate:"omitempty,max=255"`
	Folder       *string  `json:"folder" validate:"omitempty,max=500"`
	Tags         []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Description  *string  `json:"description" validate:"omitempty,max=500"`
}

type shareCreateRequest struct {
	ExpiresIn    int    `json:"expiresIn" validate:"omitempty,min=1,max=365"`
	MaxDownloads *int   `json:"maxDownloads" validate:"omitempty,min=1"`
	Password     string `json:"password" validate:"omitempty,min=1"`
}

type bulkDeleteRequest struct {
	FileIDs   []string `json:"fileIds" validate:"required,min=1,max=100,dive,mongoid"`
	Permanent bool     `json:"permanent"`
}

type moveRequest struct {
	FileIDs      []string `json:"fileIds" validate:"required,min=1,max=100,dive,mongoid"`
	TargetFolder string   `json:"targetFolder" validate:"required,max=500"`
}
