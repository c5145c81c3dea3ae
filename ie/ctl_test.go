package ie

import "testing"

func TestTellIterDecodesReply(t *testing.T) {
	it := TellIter()
	i, s := it.K(replyWith(int64(42)))
	if !i.IsDone() {
		t.Fatal("TellIter should settle once its reply chunk arrives")
	}
	if i.Result().(int64) != 42 {
		t.Errorf("expected 42; got %v", i.Result())
	}
	if s != Empty {
		t.Error("reply chunk should be fully consumed; left:", s)
	}
}

func TestSizeIterDecodesReply(t *testing.T) {
	it := SizeIter()
	i, _ := it.K(replyWith(int64(1024)))
	if !i.IsDone() || i.Result().(int64) != 1024 {
		t.Errorf("expected 1024; got %v", i.Result())
	}
}

func TestGetSocketIterDecodesReply(t *testing.T) {
	sentinel := struct{ name string }{"conn"}
	it := GetSocketIter()
	i, _ := it.K(replyWith(sentinel))
	if !i.IsDone() {
		t.Fatal("GetSocketIter should settle")
	}
	if i.Result().(struct{ name string }) != sentinel {
		t.Errorf("expected the socket value back unchanged; got %v", i.Result())
	}
}

func TestTellIterFailsWithoutAReply(t *testing.T) {
	it := TellIter()
	i, _ := it.K(Empty)
	if i.Err() == nil {
		t.Error("feeding an empty chunk should not satisfy the reply decoder")
	}
}

func TestDispatchCtlResumesOnFirstMatchingHandler(t *testing.T) {
	called := false
	handlers := []CtlHandler{
		func(req error, _ Iteratee) (Stream, bool) { return Empty, false },
		func(req error, _ Iteratee) (Stream, bool) {
			if _, ok := req.(Tell); ok {
				called = true
				return replyWith(int64(7)), true
			}
			return Empty, false
		},
	}

	resumed, handled := DispatchCtl(TellIter(), handlers)
	if !called {
		t.Fatal("the second handler should have run")
	}
	if !handled {
		t.Fatal("DispatchCtl should report handled")
	}
	if !resumed.IsDone() || resumed.Result().(int64) != 7 {
		t.Errorf("expected the request resumed with 7; got %v", resumed.Result())
	}
}

func TestDispatchCtlLeavesUnrecognizedRequestUntouched(t *testing.T) {
	it := SizeIter()
	resumed, handled := DispatchCtl(it, []CtlHandler{
		func(req error, _ Iteratee) (Stream, bool) { return Empty, false },
	})
	if handled {
		t.Fatal("no handler recognized the request")
	}
	if resumed.Err() != it.Err() {
		t.Error("an unhandled request should be returned unchanged for outward propagation")
	}
}

func TestNoHandlerErrorMessageNamesRequest(t *testing.T) {
	nh := NoHandler{Request: Tell{}}
	if nh.Error() == "" {
		t.Error("expected a non-empty message")
	}
}
