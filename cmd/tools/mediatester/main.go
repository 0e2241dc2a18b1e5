package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/majianyu/gemini-chat/backend/internal/config"
	"github.com/majianyu/gemini-chat/backend/internal/service/ai"
	mediaservice "github.com/majianyu/gemini-chat/backend/internal/service/media"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	mode := flag.String("mode", "", "测试模式: image 或 video")
	filePath := flag.String("file", "", "输入媒体文件路径")
	key := flag.String("key", "", "Gemini API key，留空则使用配置中的 GEMINI_API_KEY")
	timeout := flag.Duration("timeout", 15*time.Minute, "请求超时时间")

	flag.Parse()

	if *mode != "image" && *mode != "video" {
		flag.Usage()
		log.Fatal("请通过 -mode=image 或 -mode=video 指定测试模式")
	}

	if *filePath == "" {
		log.Fatal("请通过 -file 指定媒体文件路径")
	}

	credential := *key
	if credential == "" {
		credential = cfg.AI.APIKey
	}
	if *mode == "video" && credential == "" {
		log.Fatal("视频模式需要 Gemini 凭证，请配置 GEMINI_API_KEY 或通过 -key 提供")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("读取媒体文件失败: %v", err)
	}

	svc := mediaservice.NewService(ai.NewService(), cfg.Media, cfg.AI.APIKey)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fileName := filepath.Base(*filePath)

	switch *mode {
	case "image":
		runImage(svc, fileName, data)
	case "video":
		runVideo(ctx, svc, credential, fileName, data)
	}
}

func runImage(svc *mediaservice.Service, fileName string, data []byte) {
	log.Printf("开始图片处理测试: file=%s size=%d", fileName, len(data))

	asset, err := svc.PrepareImage(fileName, data)
	if err != nil {
		log.Fatalf("图片处理失败: %v", err)
	}

	log.Printf("图片就绪: id=%s mime=%s size=%dx%d", asset.ID, asset.MIMEType, asset.Width, asset.Height)
}

func runVideo(ctx context.Context, svc *mediaservice.Service, credential, fileName string, data []byte) {
	log.Printf("开始视频处理测试: file=%s size=%d", fileName, len(data))

	asset, err := svc.PrepareVideo(ctx, credential, fileName, data)
	if err != nil {
		log.Fatalf("视频处理失败: %v", err)
	}

	log.Printf("视频就绪: id=%s remote=%s uri=%s", asset.ID, asset.RemoteName, asset.RemoteURI)
}
