package entity

// User is a directory record.
type User struct {
	ID          int64  `json:"id" yaml:"id"`
	Username    string `json:"username" yaml:"username"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Role        string `json:"role" yaml:"role"`
	ManagerID   *int64 `json:"manager_id,omitempty" yaml:"manager_id"`
	Department  string `json:"department" yaml:"department"`
	Active      bool   `json:"active" yaml:"active"`
	LarkOpenID  string `json:"lark_open_id,omitempty" yaml:"lark_open_id"`
}
