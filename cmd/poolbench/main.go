package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/shrek82/jpool/config"
	"github.com/shrek82/jpool/logger"
	"github.com/shrek82/jpool/pool"
	"github.com/shrek82/jpool/report"
)

// 命令行参数定义
var (
	configPath = flag.String("config", "mysql.cnf", "连接池配置文件 (.cnf 或 .toml)")
	rows       = flag.Uint("n", 1000, "插入的总行数")
	workers    = flag.Uint("workers", 1, "并发插入的 goroutine 数")
	noPool     = flag.Bool("nopool", false, "不使用连接池，每次插入都新建连接")
	stmt       = flag.String("stmt", "INSERT INTO people(peop_name, peop_sex) VALUES(?, ?)", "插入语句，两个占位符依次绑定 -name 与 -sex")
	name       = flag.String("name", "zhang san", "绑定到第一个占位符的名字")
	sex        = flag.String("sex", "female", "绑定到第二个占位符的性别 (枚举值)")
	redisAddr  = flag.String("redis", "", "发布连接池统计信息的 Redis 地址，为空则只写日志")
	logFormat  = flag.String("log-format", "text", "日志格式 (text, json)")
	logBackend = flag.String("log-backend", "std", "日志后端 (std, logrus, zap)")
	slow       = flag.Duration("slow", 200*time.Millisecond, "慢语句日志阈值")
	breaker    = flag.Int("breaker", 0, "连续建连失败多少次后熔断 1 秒，0 表示不启用")
	retries    = flag.Uint64("retries", 100, "单行插入获取连接超时后的最大重试次数")
	verbose    = flag.Bool("v", false, "输出调试日志 (包括每条 SQL)")
)

func main() {
	// 设置日志格式
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	flag.Parse()

	// 校验必要参数
	if *rows == 0 || *workers == 0 {
		fmt.Println("使用说明: poolbench -config <file> [-n rows] [-workers n] [-nopool]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// 加载配置，配置文件缺失直接退出
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	l, syncLog, err := newLogger(*logBackend, *logFormat, *verbose)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer syncLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &bench{
		cfg:     cfg,
		log:     l,
		stmt:    *stmt,
		name:    *name,
		sex:     *sex,
		rows:    uint32(*rows),
		workers: uint32(*workers),
		slow:    *slow,
		breaker: *breaker,

		maxRetries: *retries,
	}

	start := time.Now()
	var res result
	if *noPool {
		res, err = b.runWithoutPool(ctx)
	} else {
		res, err = runWithPool(ctx, b, *redisAddr)
	}
	elapsed := time.Since(start)
	if err != nil {
		log.Fatalf("测试失败: %v", err)
	}

	mode := "使用连接池"
	if *noPool {
		mode = "不使用连接池"
	}
	fmt.Printf("%s, %d 个 goroutine 插入 %d 条数据耗时: %dms (成功 %d, 失败 %d, 获取超时重试 %d)\n",
		mode, b.workers, b.rows, elapsed.Milliseconds(), res.inserted, res.failed, res.retries)
	if res.stats != nil {
		s := res.stats
		fmt.Printf("连接池统计: live=%d idle=%d created=%d evicted=%d dialFailures=%d acquireTimeouts=%d wait=%v\n",
			s.Live, s.Idle, s.Created, s.Evicted, s.DialFailures, s.AcquireTimeouts, s.WaitDuration)
	}
}

// runWithPool 通过 Registry 获取连接池，可选地把统计信息发布到 Redis。
func runWithPool(ctx context.Context, b *bench, addr string) (result, error) {
	reg := pool.NewRegistry()
	defer reg.ShutdownAll()

	d, err := b.dialer()
	if err != nil {
		return result{}, err
	}
	p, err := reg.Get(ctx, b.cfg, pool.WithLogger(b.log), pool.WithDialer(d))
	if err != nil {
		return result{}, err
	}

	var r report.Reporter = report.LogReporter{Log: b.log}
	if addr != "" {
		rc, err := report.NewRedisClient(ctx, addr)
		if err != nil {
			return result{}, err
		}
		defer rc.Close()
		r = report.NewRedisReporter(rc, "jpool:stats:"+b.cfg.Key(), time.Minute)
	}

	rctx, cancel := context.WithCancel(ctx)
	reported := make(chan struct{})
	go func() {
		report.Run(rctx, p, r, time.Second, b.log)
		close(reported)
	}()

	res, err := b.runWithPool(ctx, p)
	cancel()
	<-reported
	return res, err
}

// newLogger 按后端名称构造日志器，返回的函数用于退出前刷新缓冲。
func newLogger(backend, format string, verbose bool) (logger.Logger, func(), error) {
	switch backend {
	case "std":
		l := logger.NewStdLogger()
		l.SetOutput(os.Stderr)
		if format == "json" {
			l.SetFormat(logger.LogFormatJSON)
		}
		if verbose {
			l.SetLevel(logger.LogLevelDebug)
		}
		return l, func() {}, nil
	case "logrus":
		lr := logrus.New()
		lr.SetOutput(os.Stderr)
		if format == "json" {
			lr.SetFormatter(&logrus.JSONFormatter{})
		}
		if verbose {
			lr.SetLevel(logrus.DebugLevel)
		}
		return logger.NewLogrusLogger(lr), func() {}, nil
	case "zap":
		zcfg := zap.NewProductionConfig()
		if format == "text" {
			zcfg = zap.NewDevelopmentConfig()
		}
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		zl, err := zcfg.Build()
		if err != nil {
			return nil, nil, err
		}
		return logger.NewZapLogger(zl), func() { zl.Sync() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown log backend %q", backend)
	}
}
