package cache

// lruNode is a single entry in the intrusive doubly-linked LRU list.
type lruNode[K comparable] struct {
	key  K
	prev *lruNode[K]
	next *lruNode[K]
}

// lruList is a doubly-linked list ordered from most recently used (front)
// to least recently used (back). It stores keys only; values live in the
// shard map alongside their node pointer.
type lruList[K comparable] struct {
	head *lruNode[K] // most recently used
	tail *lruNode[K] // least recently used
	n    int
}

func newLRUList[K comparable]() *lruList[K] {
	return &lruList[K]{}
}

// Len returns the number of entries in the list.
func (l *lruList[K]) Len() int { return l.n }

// PushFront inserts a new node at the front (most recently used).
func (l *lruList[K]) PushFront(key K) *lruNode[K] {
	node := &lruNode[K]{key: key}
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.n++
	return node
}

// MoveToFront moves an existing node to the front of the list.
func (l *lruList[K]) MoveToFront(node *lruNode[K]) {
	if node == l.head {
		return
	}
	l.unlink(node)
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.n++
}

// Remove unlinks a node from the list.
func (l *lruList[K]) Remove(node *lruNode[K]) {
	l.unlink(node)
}

// RemoveOldest removes and returns the least recently used key.
// Returns (zero, false) if the list is empty.
func (l *lruList[K]) RemoveOldest() (K, bool) {
	if l.tail == nil {
		var zero K
		return zero, false
	}
	key := l.tail.key
	l.unlink(l.tail)
	return key, true
}

// Oldest walks entries from least to most recently used, calling fn for
// each until fn returns false. Used to find the oldest evictable entry
// when some entries are protected by an eviction guard.
func (l *lruList[K]) Oldest(fn func(node *lruNode[K]) bool) {
	for node := l.tail; node != nil; node = node.prev {
		if !fn(node) {
			return
		}
	}
}

// Clear empties the list.
func (l *lruList[K]) Clear() {
	l.head = nil
	l.tail = nil
	l.n = 0
}

func (l *lruList[K]) unlink(node *lruNode[K]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else if l.head == node {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else if l.tail == node {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.n--
}
