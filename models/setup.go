package models

import (
	"fmt"
	"net"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"labelscope/utils"
)

var DB *gorm.DB

// MysqlDSN builds the go-sql-driver DSN for the configured server.
func MysqlDSN(cfg utils.DatabaseConfig) string {
	dsn := gomysql.NewConfig()
	dsn.User = cfg.Mysql.User
	dsn.Passwd = cfg.Mysql.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(cfg.Mysql.Host, strconv.Itoa(cfg.Mysql.Port))
	dsn.DBName = cfg.Mysql.Database
	dsn.ParseTime = true
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}

// Open connects to the configured database and migrates the schema.
func Open(cfg utils.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	var target string
	switch cfg.Driver {
	case "", "sqlite":
		target = cfg.Sqlite.Filename
		dialector = sqlite.Open(target)
	case "mysql":
		target = net.JoinHostPort(cfg.Mysql.Host, strconv.Itoa(cfg.Mysql.Port))
		dialector = mysql.Open(MysqlDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("cannot connect %s database at %s: %w", dialector.Name(), target, err)
	}
	log.Info(fmt.Sprintf("Connecting %s database at %s", dialector.Name(), target))

	if err := db.AutoMigrate(&Project{}, &File{}, &Region{}, &Class{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// ConnectDataBase opens the configured database as the package-level DB.
func ConnectDataBase(cfg utils.DatabaseConfig) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	return nil
}
