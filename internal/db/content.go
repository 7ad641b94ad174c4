package db

import "gorm.io/gorm"

// Article 定义博客文章。Views/Likes/Rating 为反范式计数列，仅由互动统计模块写入。
type Article struct {
	gorm.Model
	Title  string
	Slug   string  `gorm:"size:191;index"`
	Status string  `gorm:"size:20;default:draft;index"`
	Views  int64   `gorm:"default:0"`
	Likes  int64   `gorm:"default:0"`
	Rating float64 `gorm:"default:0"`
}

// Video 定义视频内容。
type Video struct {
	gorm.Model
	Title  string
	URL    string
	Status string  `gorm:"size:20;default:draft;index"`
	Views  int64   `gorm:"default:0"`
	Likes  int64   `gorm:"default:0"`
	Rating float64 `gorm:"default:0"`
}

// Product 是书籍、工具、花盆、配件与推荐共用的商品表，Category 区分具体类型。
type Product struct {
	gorm.Model
	Name     string
	Category string `gorm:"size:30;index"`
	Status   string `gorm:"size:20;default:active;index"`
	Price    float64
	Views    int64   `gorm:"default:0"`
	Likes    int64   `gorm:"default:0"`
	Rating   float64 `gorm:"default:0"`
}
