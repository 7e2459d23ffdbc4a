package domain

// DefaultBatchSize размер пачки upsert по умолчанию
const DefaultBatchSize = 100

// BatchItem черновик и его порядковый номер строки в файле (с 1, без заголовка)
type BatchItem struct {
	Ordinal int
	Draft   PropertyDraft
}

// Batch ограниченная упорядоченная пачка черновиков
type Batch struct {
	items    []BatchItem
	capacity int
}

func NewBatch(capacity int) *Batch {
	if capacity <= 0 {
		capacity = DefaultBatchSize
	}
	return &Batch{items: make([]BatchItem, 0, capacity), capacity: capacity}
}

// Add добавляет черновик, true если пачка заполнена
func (b *Batch) Add(ordinal int, d PropertyDraft) bool {
	b.items = append(b.items, BatchItem{Ordinal: ordinal, Draft: d})
	return len(b.items) >= b.capacity
}

func (b *Batch) Len() int { return len(b.items) }

// Take забирает накопленное и начинает новую пачку
func (b *Batch) Take() []BatchItem {
	items := b.items
	b.items = make([]BatchItem, 0, b.capacity)
	return items
}
