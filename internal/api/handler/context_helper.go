package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/response"
)

// 角色取值与 JWT role 声明一致
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id（即人员 ID）。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, "user_id")
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, "role")
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// IsPrivileged admin / manager 可访问他人的计时、考勤与报表
func IsPrivileged(role string) bool {
	return role == RoleAdmin || role == RoleManager
}

// caller 当前调用方的人员 ID 与特权标记
func caller(c *gin.Context) (string, bool, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return "", false, false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return "", false, false
	}
	return userID, IsPrivileged(role), true
}

// targetPerson 解析 person_id 查询参数；为空取调用方本人，非特权调用方不可指定他人
func targetPerson(c *gin.Context, requested string) (string, bool, bool) {
	userID, privileged, ok := caller(c)
	if !ok {
		return "", false, false
	}
	if requested == "" || requested == userID {
		return userID, privileged, true
	}
	if !privileged {
		response.Forbidden(c, 10003, "无权访问其他人员的数据")
		return "", false, false
	}
	return requested, privileged, true
}
