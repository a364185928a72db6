package blocks

// 内置块类型
const (
	TypeText      = "text"
	TypeHeader    = "header"
	TypeCode      = "code"
	TypeFile      = "file"
	TypePDF       = "pdf"
	TypeVideo     = "video"
	TypeAudio     = "audio"
	TypeImage     = "image"
	TypeSyncBlock = "sync_block"
	TypePage      = "page"
	TypeBookmark  = "bookmark"
)

func init() {
	MustRegister(Kind{Key: TypeText, Description: "paragraph", Decode: decodeText})
	MustRegister(Kind{Key: TypeHeader, Description: "heading", Decode: decodeText})
	MustRegister(Kind{Key: TypePage, Description: "page or sub-page", Decode: decodeText})
	MustRegister(Kind{Key: TypeBookmark, Description: "link preview", Decode: decodeText})
	MustRegister(Kind{Key: TypeCode, Description: "code listing", Decode: decodeCode})
	MustRegister(Kind{Key: TypeFile, Description: "file attachment", Media: true, Decode: decodeMedia})
	MustRegister(Kind{Key: TypePDF, Description: "embedded pdf", Media: true, Decode: decodeMedia})
	MustRegister(Kind{Key: TypeVideo, Description: "video", Media: true, Decode: decodeMedia})
	MustRegister(Kind{Key: TypeAudio, Description: "audio", Media: true, Decode: decodeMedia})
	// image 走 Notion 自带的图片代理，不参与地址改写
	MustRegister(Kind{Key: TypeImage, Description: "image", Decode: decodeMedia})
	MustRegister(Kind{Key: TypeSyncBlock, Description: "synced block container", Container: true, Decode: func(*Block) Properties { return RawProps{} }})
}
