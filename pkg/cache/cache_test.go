package cache

import (
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New[string, int](time.Minute)

	c.Set("a", 1, 0)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Errorf("期望得到 1，得到 %d (ok=%v)", v, ok)
	}

	_, ok = c.Get("missing")
	if ok {
		t.Error("不存在的键应该返回 false")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New[string, int](time.Minute)

	c.Set("a", 1, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("a")
	if ok {
		t.Error("过期的键应该返回 false")
	}
}

func TestCache_DeleteClear(t *testing.T) {
	c := New[string, int](time.Minute)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Delete("a")

	if _, ok := c.Get("a"); ok {
		t.Error("已删除的键应该返回 false")
	}
	if c.Size() != 1 {
		t.Errorf("期望大小为 1，得到 %d", c.Size())
	}

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("清空后期望大小为 0，得到 %d", c.Size())
	}
}
