package domain

import "time"

// SysOpr is a dashboard operator account.
type SysOpr struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	Realname  string    `json:"realname"`
	Email     string    `json:"email"`
	Username  string    `json:"username" gorm:"uniqueIndex;size:64"`
	Password  string    `json:"-"`
	Level     string    `json:"level" gorm:"size:16"`
	Status    string    `json:"status" gorm:"size:16"`
	Remark    string    `json:"remark"`
	LastLogin time.Time `json:"last_login"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SysOpr) TableName() string {
	return "sys_opr"
}
