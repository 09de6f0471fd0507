package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/betbot/iqbot/pkg/secretstore"
)

// credimport 把 .env 中的登录凭据导入加密存储，
// 之后运行主程序就不再需要明文 .env
func main() {
	var (
		inPath    = flag.String("in", ".env", "输入 .env 文件路径")
		dbPath    = flag.String("store", getenv("IQ_SECRET_PATH", "data/secrets"), "加密存储目录")
		secretKey = flag.String("secret-key", getenv("IQ_SECRET_KEY", ""), "存储加密密钥（32 字节 base64/hex）")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(fmt.Errorf("必须提供加密密钥：设置 IQ_SECRET_KEY 或传入 -secret-key"))
	}

	kv, err := godotenv.Read(*inPath)
	if err != nil {
		fatal(err)
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
	})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	// 只导入已知的凭据项，忽略其他环境变量
	mapping := map[string]string{
		"IQ_EMAIL":    secretstore.KeyEmail,
		"IQ_PASSWORD": secretstore.KeyPassword,
		"IQ_SSID":     secretstore.KeySessionID,
	}

	written := 0
	for envKey, storeKey := range mapping {
		v := strings.TrimSpace(kv[envKey])
		if v == "" {
			continue
		}
		if err := ss.SetString(storeKey, v); err != nil {
			fatal(err)
		}
		written++
	}

	fmt.Fprintf(os.Stderr, "已导入 %d 项凭据到 %s\n", written, *dbPath)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
