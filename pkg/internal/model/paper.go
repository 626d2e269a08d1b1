package model

import (
	"time"
)

// MimeTypePDF 唯一允许入库的内容类型.
const MimeTypePDF = "application/pdf"

// Paper 论文记录，元数据与对象存储中的 PDF 一一对应.
// Authors 与 Keywords 以子表持久化，读取时按 Position 还原顺序.
type Paper struct {
	ID       string   `gorm:"primaryKey;size:32"     json:"id"`
	Title    string   `gorm:"size:1024;not null"     json:"title"`
	Authors  []string `gorm:"-"                      json:"authors"`
	Abstract *string  `gorm:"type:text"              json:"abstract"`
	Keywords []string `gorm:"-"                      json:"keywords"`
	Year     *int     `gorm:"index"                  json:"year"`
	FileName string   `gorm:"size:512"               json:"fileName"`
	FileURL  string   `gorm:"size:2048;not null"     json:"fileUrl"`
	FileKey  string   `gorm:"size:512;uniqueIndex"   json:"fileKey"`
	FileSize int64    `gorm:"not null"               json:"fileSize"`
	MimeType string   `gorm:"size:128;not null"      json:"mimeType"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	AuthorRows  []PaperAuthor  `gorm:"foreignKey:PaperID;constraint:OnDelete:CASCADE" json:"-"`
	KeywordRows []PaperKeyword `gorm:"foreignKey:PaperID;constraint:OnDelete:CASCADE" json:"-"`
}

// PaperAuthor 论文作者，Position 保留提交顺序.
type PaperAuthor struct {
	ID       uint   `gorm:"primaryKey"`
	PaperID  string `gorm:"size:32;not null;index:idx_paper_author_paper"`
	Position int    `gorm:"not null"`
	Name     string `gorm:"size:512;not null;index:idx_paper_author_name"`
}

// PaperKeyword 论文关键词，Position 保留提交顺序.
type PaperKeyword struct {
	ID       uint   `gorm:"primaryKey"`
	PaperID  string `gorm:"size:32;not null;index:idx_paper_keyword_paper"`
	Position int    `gorm:"not null"`
	Value    string `gorm:"size:512;not null;index:idx_paper_keyword_value"`
}

// AllModels 需要迁移的全部模型.
func AllModels() []any {
	return []any{&Paper{}, &PaperAuthor{}, &PaperKeyword{}}
}

// SyncRows 由 Authors/Keywords 生成子表行.
func (p *Paper) SyncRows() {
	p.AuthorRows = make([]PaperAuthor, 0, len(p.Authors))
	for i, a := range p.Authors {
		p.AuthorRows = append(p.AuthorRows, PaperAuthor{PaperID: p.ID, Position: i, Name: a})
	}

	p.KeywordRows = make([]PaperKeyword, 0, len(p.Keywords))
	for i, k := range p.Keywords {
		p.KeywordRows = append(p.KeywordRows, PaperKeyword{PaperID: p.ID, Position: i, Value: k})
	}
}

// SyncLists 由子表行还原 Authors/Keywords，子表行需已按 Position 排序.
func (p *Paper) SyncLists() {
	p.Authors = make([]string, 0, len(p.AuthorRows))
	for _, a := range p.AuthorRows {
		p.Authors = append(p.Authors, a.Name)
	}

	p.Keywords = make([]string, 0, len(p.KeywordRows))
	for _, k := range p.KeywordRows {
		p.Keywords = append(p.Keywords, k.Value)
	}
}

// Clone 深拷贝，内存实现用它隔离调用方.
func (p *Paper) Clone() *Paper {
	c := *p
	c.Authors = append([]string{}, p.Authors...)
	c.Keywords = append([]string{}, p.Keywords...)
	c.AuthorRows = nil
	c.KeywordRows = nil

	if p.Abstract != nil {
		a := *p.Abstract
		c.Abstract = &a
	}

	if p.Year != nil {
		y := *p.Year
		c.Year = &y
	}

	return &c
}
