package handle

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/papervault/pkg/internal/errs"
	"github.com/yeisme/papervault/pkg/internal/service"
	"github.com/yeisme/papervault/pkg/internal/types"
	"github.com/yeisme/papervault/pkg/internal/validate"
)

// formOverhead 表单中文件以外的字段值合计允许的字节数.
const formOverhead = 1 << 20

// errFormTooLarge 文件以外的字段超出 formOverhead.
var errFormTooLarge = errors.New("form fields too large")

// PaperHandlers 论文相关的处理器.
type PaperHandlers struct {
	svc *service.PaperService
}

// NewPaperHandlers 创建论文处理器.
func NewPaperHandlers(svc *service.PaperService) *PaperHandlers {
	return &PaperHandlers{svc: svc}
}

// Upload 上传论文 PDF 及其元数据.
//
//	@Summary		上传论文
//	@Description	multipart 表单上传 PDF 与元数据，authors、keywords 以逗号分隔
//	@Tags			论文
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			title		formData	string	true	"标题"
//	@Param			authors		formData	string	true	"作者，逗号分隔"
//	@Param			abstract	formData	string	false	"摘要"
//	@Param			keywords	formData	string	false	"关键词，逗号分隔"
//	@Param			year		formData	string	false	"发表年份"
//	@Param			file		formData	file	true	"PDF 文件"
//	@Success		201			{object}	types.UploadPaperResponse
//	@Failure		400			{object}	types.ErrorResponse
//	@Failure		500			{object}	types.ErrorResponse
//	@Failure		502			{object}	types.ErrorResponse
//	@Router			/api/v1/papers/upload [post]
func (h *PaperHandlers) Upload() gin.HandlerFunc {
	return func(c *gin.Context) {
		v := h.svc.Validator()
		maxSize := v.Limits().MaxFileSize

		// 上限外留出余量给分隔符与分段头，文件内容本身由 readUpload 截断
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+2*formOverhead)

		form, err := readUpload(c, maxSize)
		if err != nil {
			writeError(c, errs.Invalid("file", "Invalid multipart form"), "")
			return
		}

		fields := validate.PaperFields{
			Title:    form.field("title"),
			Authors:  form.field("authors"),
			Abstract: form.field("abstract"),
			Keywords: form.field("keywords"),
			Year:     form.field("year"),
		}

		p, err := h.svc.Ingest(c.Request.Context(), fields, form.file)
		if err != nil {
			fallback := "An unexpected error occurred while uploading the paper"

			switch errs.CategoryOf(err) {
			case errs.CategoryStorage:
				fallback = "Failed to upload file to storage"
			case errs.CategoryDatabase:
				fallback = "Failed to save paper metadata"
			}

			writeError(c, err, fallback)

			return
		}

		c.JSON(http.StatusCreated, types.UploadPaperResponse{Message: "Paper uploaded successfully", Paper: p})
	}
}

// uploadForm 流式解析出的上传表单.
type uploadForm struct {
	values map[string]string
	file   *validate.File
	// fallback 非 multipart 请求时从 gin 读取字段
	fallback func(key string) *string
}

func (f *uploadForm) field(key string) *string {
	if f.fallback != nil {
		return f.fallback(key)
	}

	v, ok := f.values[key]
	if !ok {
		return nil
	}

	return &v
}

// readUpload 逐段读取 multipart 表单. 文件段在读入内容前先记下文件名与声明的 Content-Type，
// 内容超过 maxSize 时不再缓存，Size 记为 maxSize+1 并停止解析：文件校验失败时其余字段不参与校验.
// 请求不是 multipart 时 file 为 nil，由校验器报告.
func readUpload(c *gin.Context, maxSize int64) (*uploadForm, error) {
	mr, err := c.Request.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		return &uploadForm{fallback: func(key string) *string { return optionalForm(c, key) }}, nil
	}

	if err != nil {
		return nil, err
	}

	form := &uploadForm{values: make(map[string]string)}
	budget := int64(formOverhead)

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}

		if err != nil {
			return nil, fmt.Errorf("next part: %w", err)
		}

		name := part.FormName()

		switch {
		case name == "file" && form.file == nil:
			file, oversize, err := readFilePart(part, maxSize)
			if err != nil {
				return nil, err
			}

			form.file = file
			if oversize {
				return form, nil
			}
		case name == "" || part.FileName() != "":
			// 多余的文件段与匿名段只计入请求上限
			if _, err := io.Copy(io.Discard, part); err != nil {
				return nil, fmt.Errorf("skip part: %w", err)
			}
		default:
			b, err := io.ReadAll(io.LimitReader(part, budget+1))
			if err != nil {
				return nil, fmt.Errorf("read field %s: %w", name, err)
			}

			if budget -= int64(len(b)); budget < 0 {
				return nil, errFormTooLarge
			}

			if _, seen := form.values[name]; !seen {
				form.values[name] = string(b)
			}
		}
	}
}

// readFilePart 最多读入 maxSize+1 字节. 超出上限时返回只带元数据的文件.
func readFilePart(part *multipart.Part, maxSize int64) (*validate.File, bool, error) {
	file := &validate.File{
		Name:        part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
	}

	data, err := io.ReadAll(io.LimitReader(part, maxSize+1))

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || int64(len(data)) > maxSize {
		file.Size = maxSize + 1
		return file, true, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("read file part: %w", err)
	}

	file.Data = data
	file.Size = int64(len(data))

	return file, false, nil
}

// List 分页列出论文，search 同时匹配标题、摘要、作者与关键词.
//
//	@Summary		论文列表
//	@Tags			论文
//	@Produce		json
//	@Param			search		query		string	false	"检索词"
//	@Param			page		query		int		false	"页码"	default(1)
//	@Param			limit		query		int		false	"每页数量"	default(10)
//	@Param			sortBy		query		string	false	"排序字段"	Enums(createdAt, title, year)
//	@Param			sortOrder	query		string	false	"排序方向"	Enums(asc, desc)
//	@Success		200			{object}	types.SearchResult
//	@Failure		400			{object}	types.ErrorResponse
//	@Failure		500			{object}	types.ErrorResponse
//	@Router			/api/v1/papers [get]
func (h *PaperHandlers) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := h.svc.List(c.Request.Context(), validate.SearchParams{
			Query:     optionalQuery(c, "search"),
			Page:      optionalQuery(c, "page"),
			Limit:     optionalQuery(c, "limit"),
			SortBy:    optionalQuery(c, "sortBy"),
			SortOrder: optionalQuery(c, "sortOrder"),
		})
		if err != nil {
			writeError(c, err, "Failed to fetch papers")
			return
		}

		c.JSON(http.StatusOK, res)
	}
}

// Search 按字段检索论文，结果按创建时间倒序.
//
//	@Summary		检索论文
//	@Tags			论文
//	@Produce		json
//	@Param			q		query		string	false	"检索词，为空时返回空结果"
//	@Param			field	query		string	false	"检索字段"	Enums(all, title, authors, abstract, keywords)
//	@Param			page	query		int		false	"页码"		default(1)
//	@Param			limit	query		int		false	"每页数量"	default(10)
//	@Success		200		{object}	types.SearchResult
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		500		{object}	types.ErrorResponse
//	@Router			/api/v1/papers/search [get]
func (h *PaperHandlers) Search() gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := h.svc.Search(c.Request.Context(), validate.SearchParams{
			Query: optionalQuery(c, "q"),
			Field: optionalQuery(c, "field"),
			Page:  optionalQuery(c, "page"),
			Limit: optionalQuery(c, "limit"),
		})
		if err != nil {
			writeError(c, err, "Failed to search papers")
			return
		}

		c.JSON(http.StatusOK, res)
	}
}

// Get 读取单篇论文.
//
//	@Summary		论文详情
//	@Tags			论文
//	@Produce		json
//	@Param			id	path		string	true	"论文 ID"
//	@Success		200	{object}	types.PaperResponse
//	@Failure		400	{object}	types.ErrorResponse
//	@Failure		404	{object}	types.ErrorResponse
//	@Router			/api/v1/papers/{id} [get]
func (h *PaperHandlers) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err, "Failed to fetch paper")
			return
		}

		c.JSON(http.StatusOK, types.PaperResponse{Paper: p})
	}
}

// Delete 删除论文记录.
//
//	@Summary		删除论文
//	@Description	只删除元数据，对象存储中的 PDF 由后台清理任务回收
//	@Tags			论文
//	@Produce		json
//	@Param			id	path		string	true	"论文 ID"
//	@Success		200	{object}	types.MessageResponse
//	@Failure		400	{object}	types.ErrorResponse
//	@Failure		404	{object}	types.ErrorResponse
//	@Router			/api/v1/papers/{id} [delete]
func (h *PaperHandlers) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err, "Failed to delete paper")
			return
		}

		c.JSON(http.StatusOK, types.MessageResponse{Message: "Paper deleted successfully"})
	}
}
