package database

import (
	"fmt"
	"log"
	"schoolhub_backend/internal/config"
	"schoolhub_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
		cfg.Database.Charset,
		cfg.Database.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	// Migrations run automatically outside release mode; in release they need
	// the explicit -migrate flag.
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		err = db.AutoMigrate(
			&model.User{},
			&model.ParentLink{},
			&model.Location{},
			&model.SchoolClass{},
			&model.ClassMember{},
			&model.Test{},
			&model.TestQuestion{},
			&model.TestSubmission{},
			&model.TestAnswer{},
			&model.AttendanceRecord{},
		)
		if err != nil {
			return nil, err
		}
		log.Println("Database migration completed")
	}

	// Seed the default campus geofence so attendance works out of the box.
	var locCount int64
	db.Model(&model.Location{}).Count(&locCount)
	if locCount == 0 {
		db.Create(&model.Location{
			Name:         "Main Campus",
			Latitude:     0,
			Longitude:    0,
			RadiusMeters: 200,
		})
	}

	return db, nil
}
