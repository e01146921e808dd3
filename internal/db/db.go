package db

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例，仅供命令行入口与测试装配使用。
var DB *gorm.DB

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Models 列出需要自动迁移的全部模型。
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Channel{},
		&ChannelClick{},
		&ChannelHistory{},
		&Bookmark{},
		&BookmarkLike{},
		&ChannelMetadataCache{},
	}
}

// NowUTC 统一数据库时间戳为 UTC，保证 sqlite 中时间字符串可按字典序比较。
func NowUTC() time.Time {
	return time.Now().UTC()
}

// NewLogger 把 gorm 的告警与错误输出到 zap，zl 为空时写到标准输出。
// 查询不到记录属于正常分支，不记录。
func NewLogger(zl *zap.Logger) logger.Interface {
	var writer logger.Writer = log.New(os.Stdout, "\r\n", log.LstdFlags)
	if zl != nil {
		if std, err := zap.NewStdLogAt(zl.Named("gorm"), zapcore.WarnLevel); err == nil {
			writer = std
		}
	}
	return logger.New(writer, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// Open 根据驱动打开数据库连接并执行自动迁移。
// sqlite 下 dsn 为文件路径，空值回退到 helpyt.db。
func Open(driver, dsn string, zl *zap.Logger) (*gorm.DB, error) {
	cfg := &gorm.Config{
		NowFunc: NowUTC,
		Logger:  NewLogger(zl),
	}

	var (
		gdb *gorm.DB
		err error
	)

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres:
		if strings.TrimSpace(dsn) == "" {
			return nil, errors.New("postgres dsn is required")
		}
		gdb, err = gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
	case DriverSQLite, "":
		path := strings.TrimSpace(dsn)
		if path == "" {
			path = "helpyt.db"
		}
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
		gdb, err = gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// sqlite 同一时刻只允许一个写连接
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if err := Migrate(gdb); err != nil {
		return nil, err
	}

	return gdb, nil
}

// Init 打开数据库并赋值给全局 DB。
func Init(driver, dsn string) error {
	gdb, err := Open(driver, dsn, nil)
	if err != nil {
		return err
	}
	DB = gdb
	return nil
}

// Migrate 自动迁移模式，为核心模型创建表与唯一索引。
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
