package account

import "time"

// Provider identifies where a user's identity originates.
type Provider string

const (
	ProviderLocal Provider = "local"
	// ProviderGoogle keeps the historical value stored in existing rows.
	ProviderGoogle   Provider = "goolge"
	ProviderFacebook Provider = "facebook"
)

// VerifyStatus is the email verification state of a user.
type VerifyStatus string

const (
	VerifyNotYet VerifyStatus = "not_yet"
	VerifyPass   VerifyStatus = "pass"
)

// User is a row of the users relation.
type User struct {
	ID             int64
	Email          string
	Name           string
	HashedPassword string
	Provider       Provider
	Subject        string
	IsVerify       VerifyStatus
	CreateTime     time.Time
	LastLoginTime  *time.Time
	LoginTimes     int64
	LastActiveTime *time.Time
}

// Profile is the subset of user fields exposed to the user themselves.
type Profile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// EmailVerification is the joined verification state used by resend.
type EmailVerification struct {
	Status VerifyStatus
	Code   string
}

// ProviderProfile is the identity resolved by an OAuth provider after its
// protocol exchange. The exchange itself happens upstream.
type ProviderProfile struct {
	ExternalID  string
	Email       string
	DisplayName string
}

// DashboardUser is one row of the dashboard user list.
type DashboardUser struct {
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	CreateTime     time.Time  `json:"createTime"`
	LoginTimes     int64      `json:"loginTimes"`
	LastActiveTime *time.Time `json:"lastActiveTime"`
}

// Dashboard is the aggregate view returned to authenticated callers.
type Dashboard struct {
	UserList         []DashboardUser `json:"userList"`
	TotalUser        int64           `json:"totalUser"`
	TotalActiveToday int64           `json:"totalActiveToday"`
	TotalActiveWeek  int64           `json:"totalActiveWeek"`
}
